package crm

import (
	"context"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

// Client is the CRM contract. Calls are side effects only; callers log failures and carry on.
type Client interface {
	// UpsertContact creates or updates the contact for l and returns the CRM contact id.
	UpsertContact(ctx context.Context, l lead.Lead) (string, error)
	UpdateStatus(ctx context.Context, contactID string, status lead.Status) error
	AddNote(ctx context.Context, contactID, text string) error
}
