// Package routing maps a lead's pipeline status to the conversational role that owns it.
package routing

import (
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

var table = map[lead.Status]conversation.AgentRole{
	lead.StatusNew:                  conversation.AgentSDR,
	lead.StatusContacted:            conversation.AgentSDR,
	lead.StatusQualified:            conversation.AgentSDR,
	lead.StatusAppointmentScheduled: conversation.AgentReminder,
	lead.StatusEstimateSent:         conversation.AgentFollowUp,
	lead.StatusFollowUp:             conversation.AgentFollowUp,
}

// SelectRole is total: statuses without an owner (terminal or unknown) fall back to sdr
// and report ok=false so the caller can log it.
func SelectRole(status lead.Status) (role conversation.AgentRole, ok bool) {
	if role, ok = table[status]; ok {
		return role, true
	}
	return conversation.AgentSDR, false
}
