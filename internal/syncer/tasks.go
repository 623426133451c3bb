package syncer

import (
	"context"
	"fmt"

	"github.com/voicelinehq/crm-sync/internal/crm"
	"github.com/voicelinehq/crm-sync/internal/entity"
	"github.com/voicelinehq/crm-sync/internal/syncjob"
)

// itemTask is the per-jobType transfer behavior. One variant per job type,
// selected once per job, so adding a job type means adding a variant here
// and a case to taskFor.
type itemTask interface {
	runItem(ctx context.Context, entities entity.Repository, target crm.Transport, organizationID, entityID string) error
}

func taskFor(t syncjob.JobType) (itemTask, error) {
	switch t {
	case syncjob.TypeContactsToCRM:
		return contactsToCRM{}, nil
	case syncjob.TypeCallsToCRM:
		return callsToCRM{}, nil
	case syncjob.TypeContactsFromCRM:
		return contactsFromCRM{}, nil
	case syncjob.TypeCallsFromCRM:
		return callsFromCRM{}, nil
	default:
		return nil, fmt.Errorf("no task for job type: %s", t)
	}
}

type contactsToCRM struct{}

func (contactsToCRM) runItem(ctx context.Context, entities entity.Repository, target crm.Transport, organizationID, entityID string) error {
	c, err := entities.GetContact(ctx, organizationID, entityID)
	if err != nil {
		return fmt.Errorf("fetch contact: %w", err)
	}
	return target.PushContact(ctx, crm.ContactPayload{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Company:   c.Company,
	})
}

type callsToCRM struct{}

func (callsToCRM) runItem(ctx context.Context, entities entity.Repository, target crm.Transport, organizationID, entityID string) error {
	c, err := entities.GetCall(ctx, organizationID, entityID)
	if err != nil {
		return fmt.Errorf("fetch call record: %w", err)
	}
	return target.PushCall(ctx, crm.CallPayload{
		ID:              c.ID,
		ContactID:       c.ContactID,
		Direction:       c.Direction,
		DurationSeconds: c.DurationSeconds,
		Outcome:         c.Outcome,
		Notes:           c.Notes,
		StartedAt:       c.StartedAt,
	})
}

type contactsFromCRM struct{}

func (contactsFromCRM) runItem(ctx context.Context, entities entity.Repository, target crm.Transport, organizationID, entityID string) error {
	p, err := target.FetchContact(ctx, entityID)
	if err != nil {
		return fmt.Errorf("fetch remote contact: %w", err)
	}
	return entities.UpsertContact(ctx, &entity.Contact{
		ID:             p.ID,
		OrganizationID: organizationID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Phone:          p.Phone,
		Company:        p.Company,
	})
}

type callsFromCRM struct{}

func (callsFromCRM) runItem(ctx context.Context, entities entity.Repository, target crm.Transport, organizationID, entityID string) error {
	p, err := target.FetchCall(ctx, entityID)
	if err != nil {
		return fmt.Errorf("fetch remote call: %w", err)
	}
	return entities.UpsertCall(ctx, &entity.CallRecord{
		ID:              p.ID,
		OrganizationID:  organizationID,
		ContactID:       p.ContactID,
		Direction:       p.Direction,
		DurationSeconds: p.DurationSeconds,
		Outcome:         p.Outcome,
		Notes:           p.Notes,
		StartedAt:       p.StartedAt,
	})
}
