// Package hubspot implements a CRM transport for the HubSpot v3 objects
// API. Contacts and calls are exchanged as property maps on the standard
// object endpoints, authenticated with a private-app bearer token.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/voicelinehq/crm-sync/internal/crm"
)

const (
	defaultEndpoint = "https://api.hubapi.com"
	contactsPath    = "/crm/v3/objects/contacts"
	callsPath       = "/crm/v3/objects/calls"
)

// Transport pushes and fetches CRM records against HubSpot.
type Transport struct {
	client   *http.Client
	endpoint string
	token    string
}

// New creates a Transport with the given options applied.
func New(opts ...Option) *Transport {
	t := &Transport{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Option configures a Transport.
type Option func(*Transport)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithEndpoint overrides the default API base URL.
func WithEndpoint(ep string) Option {
	return func(t *Transport) { t.endpoint = ep }
}

// WithToken sets the private-app access token.
func WithToken(token string) Option {
	return func(t *Transport) { t.token = token }
}

// Target returns the transport identifier.
func (t *Transport) Target() string { return "hubspot" }

// object represents a HubSpot v3 object in requests and responses.
type object struct {
	ID         string            `json:"id,omitempty"`
	Properties map[string]string `json:"properties"`
}

type apiError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Verify checks that the token is accepted by listing a single contact.
func (t *Transport) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+contactsPath+"?limit=1", nil)
	if err != nil {
		return err
	}
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot: verify: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("hubspot: credentials rejected (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hubspot: verify: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (t *Transport) PushContact(ctx context.Context, p crm.ContactPayload) error {
	obj := object{Properties: map[string]string{
		"firstname": p.FirstName,
		"lastname":  p.LastName,
		"email":     p.Email,
		"phone":     p.Phone,
		"company":   p.Company,
	}}
	return t.post(ctx, contactsPath, obj)
}

func (t *Transport) PushCall(ctx context.Context, p crm.CallPayload) error {
	obj := object{Properties: map[string]string{
		"hs_timestamp":      p.StartedAt.UTC().Format(time.RFC3339),
		"hs_call_direction": callDirection(p.Direction),
		"hs_call_duration":  strconv.FormatInt(p.DurationSeconds*1000, 10),
		"hs_call_status":    "COMPLETED",
		"hs_call_title":     p.Outcome,
		"hs_call_body":      p.Notes,
	}}
	return t.post(ctx, callsPath, obj)
}

func (t *Transport) FetchContact(ctx context.Context, id string) (*crm.ContactPayload, error) {
	obj, err := t.get(ctx, contactsPath+"/"+id+"?properties=firstname,lastname,email,phone,company")
	if err != nil {
		return nil, err
	}
	return &crm.ContactPayload{
		ID:        obj.ID,
		FirstName: obj.Properties["firstname"],
		LastName:  obj.Properties["lastname"],
		Email:     obj.Properties["email"],
		Phone:     obj.Properties["phone"],
		Company:   obj.Properties["company"],
	}, nil
}

func (t *Transport) FetchCall(ctx context.Context, id string) (*crm.CallPayload, error) {
	obj, err := t.get(ctx, callsPath+"/"+id+"?properties=hs_timestamp,hs_call_direction,hs_call_duration,hs_call_title,hs_call_body")
	if err != nil {
		return nil, err
	}

	p := &crm.CallPayload{
		ID:        obj.ID,
		Direction: directionFromHubSpot(obj.Properties["hs_call_direction"]),
		Outcome:   obj.Properties["hs_call_title"],
		Notes:     obj.Properties["hs_call_body"],
	}
	if ms, err := strconv.ParseInt(obj.Properties["hs_call_duration"], 10, 64); err == nil {
		p.DurationSeconds = ms / 1000
	}
	if ts, err := time.Parse(time.RFC3339, obj.Properties["hs_timestamp"]); err == nil {
		p.StartedAt = ts
	}
	return p, nil
}

func (t *Transport) post(ctx context.Context, path string, obj object) error {
	body, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hubspot: %s: %s", path, errorMessage(resp))
	}
	return nil
}

func (t *Transport) get(ctx context.Context, path string) (*object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hubspot: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hubspot: %s: %s", path, errorMessage(resp))
	}

	var obj object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("hubspot: decode response: %w", err)
	}
	return &obj, nil
}

func (t *Transport) authorize(req *http.Request) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
}

// errorMessage extracts the API error message from a non-2xx response.
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, ae.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

func callDirection(d string) string {
	if d == "inbound" {
		return "INBOUND"
	}
	return "OUTBOUND"
}

func directionFromHubSpot(d string) string {
	if d == "INBOUND" {
		return "inbound"
	}
	return "outbound"
}
