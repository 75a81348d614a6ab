package services

import (
	"sort"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

type EventType string

const (
	EventAppointmentReminder24h EventType = "appointment_reminder_24h"
	EventAppointmentReminder2h  EventType = "appointment_reminder_2h"
	EventEstimateSent           EventType = "estimate_sent"
	EventFollowUpDue            EventType = "follow_up_due"
)

type eventRoute struct {
	role        conversation.AgentRole
	description string
	// status, when set, is where the lead moves before the proactive turn.
	status lead.Status
}

var eventRoutes = map[EventType]eventRoute{
	EventAppointmentReminder24h: {
		role:        conversation.AgentReminder,
		description: "The lead's appointment is in 24 hours. Remind them and confirm they can still make it.",
	},
	EventAppointmentReminder2h: {
		role:        conversation.AgentReminder,
		description: "The lead's appointment is in 2 hours. Send a short heads-up with anything they need to prepare.",
	},
	EventEstimateSent: {
		role:        conversation.AgentFollowUp,
		description: "An estimate was just sent to the lead. Check that it arrived and offer to walk through it.",
		status:      lead.StatusEstimateSent,
	},
	EventFollowUpDue: {
		role:        conversation.AgentFollowUp,
		description: "The lead has gone quiet. Re-engage them politely without pressure.",
		status:      lead.StatusFollowUp,
	},
}

func ParseEventType(raw string) (EventType, bool) {
	et := EventType(raw)
	_, ok := eventRoutes[et]
	return et, ok
}

func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventRoutes))
	for et := range eventRoutes {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
