package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/pkg/composables"
)

type ActionResult string

const (
	ActionApplied ActionResult = "applied"
	ActionSkipped ActionResult = "skipped"
	ActionFailed  ActionResult = "failed"
)

// ActionOutcome reports what happened to one requested side effect.
type ActionOutcome struct {
	Type   agents.ActionType
	Result ActionResult
	Detail string
	// Delivery is set for send_sms actions that reached the delivery service.
	Delivery *SendResult
	Err      error
}

// ApplyActions applies actions to the conversation's lead outside of a turn. Each action
// is isolated: a failure or panic in one never stops the rest.
func (o *Orchestrator) ApplyActions(ctx context.Context, conversationID string, actions []agents.Action) ([]ActionOutcome, error) {
	conv, err := o.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	leadID := conv.LeadID()
	defer o.locks.Lock(leadID)()

	// reload under the lock so a concurrent turn is not overwritten
	if conv, err = o.repo.GetByID(ctx, conversationID); err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	ctx = composables.WithLogger(ctx, composables.UseLogger(ctx).WithFields(logrus.Fields{
		"lead_id":         leadID,
		"conversation_id": conversationID,
	}))

	contactID := conv.Lead().CRMContactID
	conv, outcomes := o.applyActions(ctx, conv, actions, lastAssistantText(conv))
	if conv.Lead().CRMContactID != contactID {
		o.save(ctx, conv)
	}
	return outcomes, nil
}

func lastAssistantText(conv conversation.Conversation) string {
	msgs := conv.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role() == conversation.RoleAssistant {
			return msgs[i].Content()
		}
	}
	return ""
}

func (o *Orchestrator) applyActions(
	ctx context.Context,
	conv conversation.Conversation,
	actions []agents.Action,
	reply string,
) (conversation.Conversation, []ActionOutcome) {
	if len(actions) == 0 {
		return conv, nil
	}
	outcomes := make([]ActionOutcome, 0, len(actions))
	for _, action := range actions {
		var out ActionOutcome
		conv, out = o.runAction(ctx, conv, action, reply)
		actionResults.WithLabelValues(string(action.Type), string(out.Result)).Inc()
		outcomes = append(outcomes, out)
	}
	return conv, outcomes
}

func (o *Orchestrator) runAction(
	ctx context.Context,
	conv conversation.Conversation,
	action agents.Action,
	reply string,
) (next conversation.Conversation, out ActionOutcome) {
	logger := composables.UseLogger(ctx).WithField("action", action.Type)
	next = conv
	defer func() {
		if r := recover(); r != nil {
			next = conv
			out = ActionOutcome{Type: action.Type, Result: ActionFailed, Err: errors.Errorf("action panicked: %v", r)}
			logger.WithField("panic", r).Error("action panicked")
		}
	}()

	switch action.Type {
	case agents.ActionUpdateCRM:
		next, out = o.updateCRM(ctx, conv, action)
	case agents.ActionScheduleAppointment:
		logger.WithField("params", action.Params).Info("appointment scheduling requested")
		out = ActionOutcome{Result: ActionApplied, Detail: "logged"}
	case agents.ActionSendEmail:
		logger.WithField("params", action.Params).Info("email requested")
		out = ActionOutcome{Result: ActionApplied, Detail: "logged"}
	case agents.ActionSendSMS:
		out = o.sendSMS(ctx, conv, action, reply)
	case agents.ActionEscalateToHuman:
		next, out = o.escalate(ctx, conv, action)
	default:
		logger.Warn("unknown action ignored")
		out = ActionOutcome{Result: ActionSkipped, Detail: "unknown action"}
	}
	out.Type = action.Type
	if out.Err != nil {
		logger.WithError(out.Err).Error("action failed")
	}
	return next, out
}

func (o *Orchestrator) contactID(ctx context.Context, conv conversation.Conversation) (conversation.Conversation, string, error) {
	if id := conv.Lead().CRMContactID; id != "" {
		return conv, id, nil
	}
	id, err := o.crm.UpsertContact(ctx, conv.Lead())
	if err != nil {
		return conv, "", errors.Wrap(err, "upsert crm contact")
	}
	l := conv.Lead()
	l.CRMContactID = id
	return conv.SetLead(l), id, nil
}

func (o *Orchestrator) updateCRM(ctx context.Context, conv conversation.Conversation, action agents.Action) (conversation.Conversation, ActionOutcome) {
	if o.crm == nil {
		return conv, ActionOutcome{Result: ActionSkipped, Detail: "crm not configured"}
	}
	id, err := o.crm.UpsertContact(ctx, conv.Lead())
	if err != nil {
		return conv, ActionOutcome{Result: ActionFailed, Err: errors.Wrap(err, "upsert crm contact")}
	}
	l := conv.Lead()
	l.CRMContactID = id
	conv = conv.SetLead(l)
	if err := o.crm.UpdateStatus(ctx, id, l.Status); err != nil {
		return conv, ActionOutcome{Result: ActionFailed, Err: errors.Wrap(err, "update crm status")}
	}
	if note := strings.TrimSpace(action.Params["note"]); note != "" {
		if err := o.crm.AddNote(ctx, id, note); err != nil {
			return conv, ActionOutcome{Result: ActionFailed, Err: errors.Wrap(err, "add crm note")}
		}
	}
	return conv, ActionOutcome{Result: ActionApplied, Detail: id}
}

func (o *Orchestrator) escalate(ctx context.Context, conv conversation.Conversation, action agents.Action) (conversation.Conversation, ActionOutcome) {
	if o.crm == nil {
		composables.UseLogger(ctx).WithField("params", action.Params).Warn("escalation requested without a crm")
		return conv, ActionOutcome{Result: ActionSkipped, Detail: "crm not configured"}
	}
	conv, id, err := o.contactID(ctx, conv)
	if err != nil {
		return conv, ActionOutcome{Result: ActionFailed, Err: err}
	}
	note := "Escalated to a human by the " + string(conv.CurrentAgent()) + " agent"
	if reason := strings.TrimSpace(action.Params["reason"]); reason != "" {
		note += ": " + reason
	}
	if err := o.crm.AddNote(ctx, id, note); err != nil {
		return conv, ActionOutcome{Result: ActionFailed, Err: errors.Wrap(err, "add crm note")}
	}
	return conv, ActionOutcome{Result: ActionApplied, Detail: id}
}

func (o *Orchestrator) sendSMS(ctx context.Context, conv conversation.Conversation, action agents.Action, reply string) ActionOutcome {
	l := conv.Lead()
	if !l.CanText() {
		composables.UseLogger(ctx).Info("sms skipped: no consent or phone on file")
		return ActionOutcome{Result: ActionSkipped, Detail: "no consent or phone"}
	}
	text := strings.TrimSpace(action.Params["message"])
	if text == "" {
		text = strings.TrimSpace(reply)
	}
	if text == "" {
		return ActionOutcome{Result: ActionSkipped, Detail: "empty message"}
	}
	res := o.delivery.Send(ctx, SendOptions{
		To:      l.Phone,
		Message: text,
		LeadID:  l.ID,
		Metadata: map[string]string{
			"conversation_id": conv.ID(),
			"agent":           string(conv.CurrentAgent()),
		},
	})
	out := ActionOutcome{Result: ActionApplied, Detail: string(res.Status), Delivery: &res}
	switch res.Status {
	case SendStatusError, SendStatusInvalidFormat:
		out.Result = ActionFailed
		out.Err = res.Err
	case SendStatusRateLimited:
		out.Result = ActionSkipped
	}
	return out
}
