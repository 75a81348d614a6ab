package leads

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/domain/crm"
	"github.com/iota-uz/leadflow/modules/leads/services"
	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/eventbus"
)

func subscribe(bus eventbus.EventBus, client crm.Client) {
	bus.Subscribe(auditAgentSwitch)
	bus.Subscribe(auditStatusChange)
	if client != nil {
		bus.Subscribe(crmStatusSync(client))
	}
}

func auditAgentSwitch(ctx context.Context, e *services.AgentSwitched) {
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"audit":           "agent_switched",
		"lead_id":         e.LeadID,
		"conversation_id": e.ConversationID,
		"from":            e.From,
		"to":              e.To,
		"reason":          e.Reason,
	}).Info("audit")
}

func auditStatusChange(ctx context.Context, e *services.LeadStatusChanged) {
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"audit":           "lead_status_changed",
		"lead_id":         e.LeadID,
		"conversation_id": e.ConversationID,
		"from":            e.From,
		"to":              e.To,
	}).Info("audit")
}

// crmStatusSync mirrors status changes onto contacts the CRM already knows about.
func crmStatusSync(client crm.Client) func(context.Context, *services.LeadStatusChanged) error {
	return func(ctx context.Context, e *services.LeadStatusChanged) error {
		if e.CRMContactID == "" {
			return nil
		}
		if err := client.UpdateStatus(ctx, e.CRMContactID, e.To); err != nil {
			return errors.Wrapf(err, "sync crm status for lead %s", e.LeadID)
		}
		return nil
	}
}
