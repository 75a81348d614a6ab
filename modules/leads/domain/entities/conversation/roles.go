package conversation

import "strings"

type AgentRole string

const (
	AgentSDR      AgentRole = "sdr"
	AgentReminder AgentRole = "reminder"
	AgentFollowUp AgentRole = "followup"
)

func AgentRoles() []AgentRole {
	return []AgentRole{AgentSDR, AgentReminder, AgentFollowUp}
}

// ParseAgentRole maps free text such as "Follow-Up" or "SDR" onto a role.
func ParseAgentRole(raw string) (AgentRole, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "sdr":
		return AgentSDR, true
	case "reminder":
		return AgentReminder, true
	case "followup":
		return AgentFollowUp, true
	default:
		return "", false
	}
}

func (r AgentRole) Valid() bool {
	switch r {
	case AgentSDR, AgentReminder, AgentFollowUp:
		return true
	default:
		return false
	}
}

type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformFacebook Platform = "facebook"
	PlatformSMS      Platform = "sms"
	PlatformEmail    Platform = "email"
)

func ParsePlatform(raw string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(raw))) {
	case PlatformWeb:
		return PlatformWeb, true
	case PlatformFacebook, "fb":
		return PlatformFacebook, true
	case PlatformSMS, "text":
		return PlatformSMS, true
	case PlatformEmail:
		return PlatformEmail, true
	default:
		return "", false
	}
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)
