package crm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ContactPayload is the system-neutral contact shape exchanged with an
// external CRM.
type ContactPayload struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
}

// CallPayload is the system-neutral call-record shape exchanged with an
// external CRM.
type CallPayload struct {
	ID              string
	ContactID       string
	Direction       string
	DurationSeconds int64
	Outcome         string
	Notes           string
	StartedAt       time.Time
}

// Transport delivers records to and fetches records from one external CRM.
// Rate limiting and retries are the transport's own concern; callers only
// see pass or fail per record.
type Transport interface {
	Target() string
	// Verify checks credentials and connectivity before a batch starts.
	// A Verify failure is a job-level failure, not a per-item one.
	Verify(ctx context.Context) error
	PushContact(ctx context.Context, p ContactPayload) error
	PushCall(ctx context.Context, p CallPayload) error
	FetchContact(ctx context.Context, id string) (*ContactPayload, error)
	FetchCall(ctx context.Context, id string) (*CallPayload, error)
}

type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]Transport),
	}
}

func (r *Registry) Register(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[t.Target()] = t
}

func (r *Registry) Get(target string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[target]
	if !ok {
		return nil, fmt.Errorf("transport not found for target: %s", target)
	}
	return t, nil
}

func (r *Registry) Has(target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transports[target]
	return ok
}

func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]string, 0, len(r.transports))
	for name := range r.transports {
		targets = append(targets, name)
	}
	return targets
}
