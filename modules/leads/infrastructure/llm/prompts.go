package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

type profile struct {
	name      string
	objective string
	opening   string
}

var profiles = map[conversation.AgentRole]profile{
	conversation.AgentSDR: {
		name:      "sales development representative",
		objective: "Qualify the lead: learn the service they need, project details, timeline, city, whether they are the decision maker, and ask for permission to text them. Offer to book an appointment once qualified.",
		opening:   "Thanks for reaching out! I'd love to learn a bit about your project. What are you looking to get done?",
	},
	conversation.AgentReminder: {
		name:      "appointment coordinator",
		objective: "Confirm the scheduled appointment, answer logistics questions, and handle reschedules. Hand back to sdr if the lead wants a different service.",
		opening:   "Just a friendly reminder about your upcoming appointment. Does the time still work for you?",
	},
	conversation.AgentFollowUp: {
		name:      "follow-up specialist",
		objective: "Follow up on the estimate, address objections, and move the lead toward a decision. Mark the lead won or lost when they decide.",
		opening:   "Checking in on the estimate we sent over. Any questions I can answer?",
	},
}

const responseContract = `Answer with a single JSON object and nothing else:
{
  "message": "text to send to the lead",
  "actions": [{"type": "update_crm|schedule_appointment|send_email|send_sms|escalate_to_human", "params": {"key": "value"}}],
  "suggestedNextRole": "sdr|reminder|followup or empty",
  "leadUpdates": {
    "name": "", "email": "", "phone": "", "city": "", "serviceInterest": "", "projectDetails": "",
    "timeline": "", "status": "new|contacted|qualified|appointment_scheduled|estimate_sent|follow_up|won|lost",
    "decisionMaker": "yes|no|unknown", "textingConsent": true
  }
}
Only include leadUpdates fields you learned in this turn.`

func systemPrompt(role conversation.AgentRole, state agents.State) string {
	p := profiles[role]
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s for a home services company.\n", p.name)
	fmt.Fprintf(&b, "Objective: %s\n", p.objective)
	fmt.Fprintf(&b, "Current time: %s\n\n", state.Now.UTC().Format(time.RFC3339))
	b.WriteString("Known lead facts:\n")
	writeFacts(&b, state.Lead)
	b.WriteString("\n")
	b.WriteString(responseContract)
	return b.String()
}

func writeFacts(b *strings.Builder, l lead.Lead) {
	facts := []struct {
		label string
		value string
	}{
		{"name", l.Name},
		{"city", l.City},
		{"service", l.ServiceInterest},
		{"project", l.ProjectDetails},
		{"timeline", l.Timeline},
		{"status", string(l.Status)},
		{"temperature", string(l.Temperature)},
		{"decision maker", string(l.DecisionMaker)},
	}
	for _, f := range facts {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(b, "- %s: %s\n", f.label, f.value)
	}
	fmt.Fprintf(b, "- texting consent: %t\n", l.TextingConsent)
}

func triggerPrompt(trigger agents.Trigger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a proactive message. Reason: %s", trigger.Description)
	if len(trigger.Data) > 0 {
		b.WriteString("\nDetails:")
		for _, k := range sortedKeys(trigger.Data) {
			fmt.Fprintf(&b, "\n- %s: %s", k, trigger.Data[k])
		}
	}
	return b.String()
}
