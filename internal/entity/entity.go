package entity

import (
	"context"
	"time"
)

type Contact struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Company        string    `json:"company"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CallRecord struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organizationId"`
	ContactID       string    `json:"contactId"`
	Direction       string    `json:"direction"`
	DurationSeconds int64     `json:"durationSeconds"`
	Outcome         string    `json:"outcome"`
	Notes           string    `json:"notes"`
	StartedAt       time.Time `json:"startedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Repository supplies entities for outbound jobs and absorbs entities
// pulled in from an external CRM.
type Repository interface {
	GetContact(ctx context.Context, organizationID, id string) (*Contact, error)
	GetCall(ctx context.Context, organizationID, id string) (*CallRecord, error)
	UpsertContact(ctx context.Context, c *Contact) error
	UpsertCall(ctx context.Context, c *CallRecord) error
}
