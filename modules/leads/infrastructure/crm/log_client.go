package crm

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/pkg/composables"
)

// LogClient is used when no CRM is configured; it records every call in the log.
type LogClient struct{}

func NewLogClient() *LogClient {
	return &LogClient{}
}

func (LogClient) UpsertContact(ctx context.Context, l lead.Lead) (string, error) {
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"lead_id": l.ID,
		"status":  l.Status,
	}).Info("crm upsert contact (log only)")
	return "local-" + l.ID, nil
}

func (LogClient) UpdateStatus(ctx context.Context, contactID string, status lead.Status) error {
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"contact_id": contactID,
		"status":     status,
	}).Info("crm update status (log only)")
	return nil
}

func (LogClient) AddNote(ctx context.Context, contactID, text string) error {
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"contact_id": contactID,
		"note":       text,
	}).Info("crm add note (log only)")
	return nil
}
