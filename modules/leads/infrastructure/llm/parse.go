package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

var (
	thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceRegex    = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

type rawAction struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type rawUpdates struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	City            *string `json:"city"`
	ServiceInterest *string `json:"serviceInterest"`
	ProjectDetails  *string `json:"projectDetails"`
	Timeline        *string `json:"timeline"`
	Status          *string `json:"status"`
	Temperature     *string `json:"temperature"`
	DecisionMaker   *string `json:"decisionMaker"`
	TextingConsent  *bool   `json:"textingConsent"`
}

type rawResponse struct {
	Message           string      `json:"message"`
	Actions           []rawAction `json:"actions"`
	SuggestedNextRole string      `json:"suggestedNextRole"`
	LeadUpdates       *rawUpdates `json:"leadUpdates"`
}

// ParseResponse turns model output into a Response. Values outside the closed enums are
// dropped and reported in warnings. Output that is not JSON becomes the message verbatim.
func ParseResponse(output string) (agents.Response, []string) {
	text := strings.TrimSpace(thinkTagRegex.ReplaceAllString(output, ""))
	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var raw rawResponse
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start || json.Unmarshal([]byte(text[start:end+1]), &raw) != nil {
		return agents.Response{Message: text}, []string{"model output is not JSON, using it as plain text"}
	}

	var warnings []string
	resp := agents.Response{Message: strings.TrimSpace(raw.Message)}

	for _, a := range raw.Actions {
		t, ok := agents.ParseActionType(a.Type)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown action type %q", a.Type))
			continue
		}
		resp.Actions = append(resp.Actions, agents.Action{Type: t, Params: stringifyParams(a.Params)})
	}

	if s := strings.TrimSpace(raw.SuggestedNextRole); s != "" {
		if role, ok := conversation.ParseAgentRole(s); ok {
			resp.SuggestedNextRole = role
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown suggested role %q", s))
		}
	}

	if raw.LeadUpdates != nil {
		var w []string
		resp.LeadUpdates, w = toUpdates(*raw.LeadUpdates)
		warnings = append(warnings, w...)
	}
	return resp, warnings
}

func toUpdates(raw rawUpdates) (lead.Updates, []string) {
	var warnings []string
	u := lead.Updates{
		Name:            nonEmpty(raw.Name),
		Email:           nonEmpty(raw.Email),
		Phone:           nonEmpty(raw.Phone),
		City:            nonEmpty(raw.City),
		ServiceInterest: nonEmpty(raw.ServiceInterest),
		ProjectDetails:  nonEmpty(raw.ProjectDetails),
		Timeline:        nonEmpty(raw.Timeline),
		TextingConsent:  raw.TextingConsent,
	}
	if v := nonEmpty(raw.Status); v != nil {
		if s, ok := lead.ParseStatus(*v); ok {
			u.Status = &s
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown status %q", *v))
		}
	}
	if v := nonEmpty(raw.Temperature); v != nil {
		if t, ok := lead.ParseTemperature(*v); ok {
			u.Temperature = &t
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown temperature %q", *v))
		}
	}
	if v := nonEmpty(raw.DecisionMaker); v != nil {
		if d, ok := lead.ParseDecisionMaker(*v); ok {
			u.DecisionMaker = &d
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown decision maker %q", *v))
		}
	}
	return u, warnings
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func stringifyParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			b, err := json.Marshal(val)
			if err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
