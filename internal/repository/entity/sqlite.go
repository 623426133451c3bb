package entity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voicelinehq/crm-sync/internal/apperror"
	domain "github.com/voicelinehq/crm-sync/internal/entity"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetContact(ctx context.Context, organizationID, id string) (*domain.Contact, error) {
	const query = `SELECT id, organization_id, first_name, last_name, email, phone, company,
		created_at, updated_at
		FROM contacts WHERE id = ? AND organization_id = ?`

	c := &domain.Contact{}
	var createdStr, updatedStr string

	err := r.db.QueryRowContext(ctx, query, id, organizationID).Scan(
		&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName,
		&c.Email, &c.Phone, &c.Company, &createdStr, &updatedStr,
	)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return c, nil
}

func (r *Repository) GetCall(ctx context.Context, organizationID, id string) (*domain.CallRecord, error) {
	const query = `SELECT id, organization_id, contact_id, direction, duration_seconds,
		outcome, notes, started_at, created_at
		FROM call_records WHERE id = ? AND organization_id = ?`

	c := &domain.CallRecord{}
	var startedStr, createdStr string

	err := r.db.QueryRowContext(ctx, query, id, organizationID).Scan(
		&c.ID, &c.OrganizationID, &c.ContactID, &c.Direction, &c.DurationSeconds,
		&c.Outcome, &c.Notes, &startedStr, &createdStr,
	)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "call record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get call record: %w", err)
	}

	c.StartedAt, _ = time.Parse(time.RFC3339, startedStr)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return c, nil
}

func (r *Repository) UpsertContact(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	const query = `INSERT INTO contacts (id, organization_id, first_name, last_name, email, phone, company)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			company = excluded.company,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrganizationID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (r *Repository) UpsertCall(ctx context.Context, c *domain.CallRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}

	const query = `INSERT INTO call_records (id, organization_id, contact_id, direction,
			duration_seconds, outcome, notes, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			contact_id = excluded.contact_id,
			direction = excluded.direction,
			duration_seconds = excluded.duration_seconds,
			outcome = excluded.outcome,
			notes = excluded.notes,
			started_at = excluded.started_at`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrganizationID, c.ContactID, c.Direction,
		c.DurationSeconds, c.Outcome, c.Notes, c.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert call record: %w", err)
	}
	return nil
}
