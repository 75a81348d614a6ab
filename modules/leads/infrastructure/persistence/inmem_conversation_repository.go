package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/persistence/models"
)

type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SafeMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, found := s.m[key]
	return val, found
}

// Update runs fn with exclusive access so that several keys change together.
func (s *SafeMap[K, V]) Update(fn func(m map[K]V)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.m)
}

// Range calls fn for every entry under a read lock until fn returns false.
func (s *SafeMap[K, V]) Range(fn func(key K, value V) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.m {
		if !fn(k, v) {
			return
		}
	}
}

func (s *SafeMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InmemConversationRepository keeps the same JSON records and key layout as the Redis
// repository, with TTLs measured on the injected clock.
type InmemConversationRepository struct {
	storage *SafeMap[string, entry]
	keys    keyspace
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewInmemConversationRepository(opts Options) *InmemConversationRepository {
	opts = opts.withDefaults()
	return &InmemConversationRepository{
		storage: NewSafeMap[string, entry](),
		keys:    newKeyspace(opts.KeyPrefix),
		ttl:     opts.TTL,
		clock:   opts.Clock,
	}
}

func (r *InmemConversationRepository) get(key string) ([]byte, bool) {
	e, found := r.storage.Get(key)
	if !found || e.expired(r.clock.Now()) {
		return nil, false
	}
	return e.value, true
}

func (r *InmemConversationRepository) GetByID(ctx context.Context, id string) (conversation.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, found := r.get(r.keys.conversation(id))
	if !found {
		return nil, conversation.ErrConversationNotFound
	}
	return decodeConversation(data)
}

func (r *InmemConversationRepository) GetByLead(ctx context.Context, leadID string) (conversation.Conversation, error) {
	return r.getByIndex(ctx, r.keys.lead(leadID))
}

func (r *InmemConversationRepository) GetByPhone(ctx context.Context, raw string) (conversation.Conversation, error) {
	for _, key := range r.keys.phoneLookups(raw) {
		c, err := r.getByIndex(ctx, key)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, conversation.ErrConversationNotFound) {
			return nil, err
		}
	}
	return nil, conversation.ErrConversationNotFound
}

func (r *InmemConversationRepository) getByIndex(ctx context.Context, indexKey string) (conversation.Conversation, error) {
	id, found := r.get(indexKey)
	if !found {
		return nil, conversation.ErrConversationNotFound
	}
	return r.GetByID(ctx, string(id))
}

func (r *InmemConversationRepository) Save(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := ToDBConversation(c)
	data, err := json.Marshal(model)
	if err != nil {
		return nil, errors.Wrap(err, "marshal conversation")
	}

	now := r.clock.Now()
	var expiresAt time.Time
	if r.ttl > 0 {
		expiresAt = now.Add(r.ttl)
	}
	primaryKey := r.keys.conversation(model.ID)
	phoneKey := r.keys.phone(model.Lead.Phone)
	id := []byte(model.ID)

	r.storage.Update(func(m map[string]entry) {
		if prev, ok := m[primaryKey]; ok && !prev.expired(now) {
			var old models.Conversation
			if json.Unmarshal(prev.value, &old) == nil {
				oldKey := r.keys.phone(old.Lead.Phone)
				if owner, ok := m[oldKey]; oldKey != "" && oldKey != phoneKey && ok && string(owner.value) == model.ID {
					delete(m, oldKey)
				}
			}
		}
		m[primaryKey] = entry{value: data, expiresAt: expiresAt}
		m[r.keys.lead(model.Lead.ID)] = entry{value: id, expiresAt: expiresAt}
		if phoneKey != "" {
			m[phoneKey] = entry{value: id, expiresAt: expiresAt}
		}
	})
	return c, nil
}

func (r *InmemConversationRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	primaryKey := r.keys.conversation(id)
	r.storage.Update(func(m map[string]entry) {
		prev, ok := m[primaryKey]
		if !ok {
			return
		}
		delete(m, primaryKey)
		var model models.Conversation
		if json.Unmarshal(prev.value, &model) != nil {
			return
		}
		for _, indexKey := range []string{r.keys.lead(model.Lead.ID), r.keys.phone(model.Lead.Phone)} {
			if owner, ok := m[indexKey]; indexKey != "" && ok && string(owner.value) == id {
				delete(m, indexKey)
			}
		}
	})
	return nil
}

func (r *InmemConversationRepository) GetActive(ctx context.Context) ([]conversation.Conversation, error) {
	all, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	return filterActive(all), nil
}

func (r *InmemConversationRepository) GetNeedingFollowUp(ctx context.Context, maxAge time.Duration) ([]conversation.Conversation, error) {
	all, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	return filterFollowUp(all, r.clock.Now().Add(-maxAge)), nil
}

// Sweep drops expired entries and returns how many were removed.
func (r *InmemConversationRepository) Sweep() int {
	now := r.clock.Now()
	removed := 0
	r.storage.Update(func(m map[string]entry) {
		for k, e := range m {
			if e.expired(now) {
				delete(m, k)
				removed++
			}
		}
	})
	return removed
}

func (r *InmemConversationRepository) list(ctx context.Context) ([]conversation.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	prefix := strings.TrimSuffix(r.keys.conversationPattern(), "*")
	var raw [][]byte
	r.storage.Range(func(key string, e entry) bool {
		if strings.HasPrefix(key, prefix) && !e.expired(now) {
			raw = append(raw, e.value)
		}
		return true
	})

	result := make([]conversation.Conversation, 0, len(raw))
	for _, data := range raw {
		c, err := decodeConversation(data)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}
