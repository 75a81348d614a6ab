package persistence

import (
	"cmp"
	"slices"
	"time"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/pkg/phone"
)

const DefaultKeyPrefix = "leadflow:conversations:v1"

// keyspace names the primary record and its two secondary indices. Both backends use
// the same key layout.
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) conversation(id string) string {
	return k.prefix + ":conv:" + id
}

func (k keyspace) conversationPattern() string {
	return k.prefix + ":conv:*"
}

func (k keyspace) lead(leadID string) string {
	return k.prefix + ":lead:" + leadID
}

// phone returns "" when raw has no digits, meaning the record has no phone index.
func (k keyspace) phone(raw string) string {
	digits := phone.Digits(raw)
	if digits == "" {
		return ""
	}
	return k.prefix + ":phone:" + digits
}

func (k keyspace) phoneLookups(raw string) []string {
	forms := phone.LookupForms(raw)
	keys := make([]string, 0, len(forms))
	for _, form := range forms {
		keys = append(keys, k.prefix+":phone:"+form)
	}
	return keys
}

// sortByActivity orders conversations most recently active first.
func sortByActivity(list []conversation.Conversation) {
	slices.SortFunc(list, func(a, b conversation.Conversation) int {
		if c := b.LastMessageAt().Compare(a.LastMessageAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
}

func filterActive(list []conversation.Conversation) []conversation.Conversation {
	out := make([]conversation.Conversation, 0, len(list))
	for _, c := range list {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sortByActivity(out)
	return out
}

func filterFollowUp(list []conversation.Conversation, cutoff time.Time) []conversation.Conversation {
	out := make([]conversation.Conversation, 0, len(list))
	for _, c := range list {
		if c.NeedsFollowUp(cutoff) {
			out = append(out, c)
		}
	}
	sortByActivity(out)
	return out
}
