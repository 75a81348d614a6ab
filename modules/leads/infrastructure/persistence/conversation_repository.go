package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/persistence/models"
)

const scanBatch = 100

// ConversationRepository stores each conversation as a JSON string with two string indices.
// All three keys are written in one MULTI/EXEC with the same TTL.
type ConversationRepository struct {
	redis redis.UniversalClient
	keys  keyspace
	ttl   time.Duration
	clock clockwork.Clock
}

func NewConversationRedisRepository(client redis.UniversalClient, opts Options) *ConversationRepository {
	opts = opts.withDefaults()
	return &ConversationRepository{
		redis: client,
		keys:  newKeyspace(opts.KeyPrefix),
		ttl:   opts.TTL,
		clock: opts.Clock,
	}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (conversation.Conversation, error) {
	result, err := r.redis.Get(ctx, r.keys.conversation(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, conversation.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "get conversation")
	}
	return decodeConversation(result)
}

func (r *ConversationRepository) GetByLead(ctx context.Context, leadID string) (conversation.Conversation, error) {
	return r.getByIndex(ctx, r.keys.lead(leadID))
}

func (r *ConversationRepository) GetByPhone(ctx context.Context, raw string) (conversation.Conversation, error) {
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

// getByIndex treats a dangling index (primary expired or deleted) as not found.
func (r *ConversationRepository) getByIndex(ctx context.Context, indexKey string) (conversation.Conversation, error) {
	id, err := r.redis.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, conversation.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, fmt.Sprintf("resolve index %s", indexKey))
	}
	return r.GetByID(ctx, id)
}

func (r *ConversationRepository) Save(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	model := ToDBConversation(c)
	data, err := json.Marshal(model)
	if err != nil {
		return nil, errors.Wrap(err, "marshal conversation")
	}

	primaryKey := r.keys.conversation(model.ID)
	phoneKey := r.keys.phone(model.Lead.Phone)
	staleKey, err := r.stalePhoneKey(ctx, primaryKey, model.ID, phoneKey)
	if err != nil {
		return nil, err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, primaryKey, data, r.ttl)
		pipe.Set(ctx, r.keys.lead(model.Lead.ID), model.ID, r.ttl)
		if phoneKey != "" {
			pipe.Set(ctx, phoneKey, model.ID, r.ttl)
		}
		if staleKey != "" {
			pipe.Del(ctx, staleKey)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "save conversation")
	}
	return c, nil
}

// stalePhoneKey returns the phone index left behind by the previous version of the record,
// if the phone changed and the old index still points at this conversation.
func (r *ConversationRepository) stalePhoneKey(ctx context.Context, primaryKey, id, phoneKey string) (string, error) {
	prev, err := r.redis.Get(ctx, primaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load previous conversation")
	}
	var old models.Conversation
	if err := json.Unmarshal(prev, &old); err != nil {
		return "", nil
	}
	oldKey := r.keys.phone(old.Lead.Phone)
	if oldKey == "" || oldKey == phoneKey {
		return "", nil
	}
	owner, err := r.redis.Get(ctx, oldKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve previous phone index")
	}
	if owner != id {
		return "", nil
	}
	return oldKey, nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	primaryKey := r.keys.conversation(id)
	data, err := r.redis.Get(ctx, primaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load conversation for delete")
	}
	var model models.Conversation
	if err := json.Unmarshal(data, &model); err != nil {
		return r.redis.Del(ctx, primaryKey).Err()
	}
	keys := []string{primaryKey}
	for _, indexKey := range []string{r.keys.lead(model.Lead.ID), r.keys.phone(model.Lead.Phone)} {
		owned, err := r.ownsIndex(ctx, indexKey, id)
		if err != nil {
			return err
		}
		if owned {
			keys = append(keys, indexKey)
		}
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete conversation")
	}
	return nil
}

// ownsIndex reports whether the index key still resolves to the given conversation.
// A newer conversation for the same lead or phone may have taken it over.
func (r *ConversationRepository) ownsIndex(ctx context.Context, indexKey, id string) (bool, error) {
	if indexKey == "" {
		return false, nil
	}
	owner, err := r.redis.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "resolve conversation index")
	}
	return owner == id, nil
}

func (r *ConversationRepository) GetActive(ctx context.Context) ([]conversation.Conversation, error) {
	all, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	return filterActive(all), nil
}

func (r *ConversationRepository) GetNeedingFollowUp(ctx context.Context, maxAge time.Duration) ([]conversation.Conversation, error) {
	all, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	return filterFollowUp(all, r.clock.Now().Add(-maxAge)), nil
}

func (r *ConversationRepository) list(ctx context.Context) ([]conversation.Conversation, error) {
	var (
		result []conversation.Conversation
		cursor uint64
	)
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, r.keys.conversationPattern(), scanBatch).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scan conversations")
		}
		if len(keys) > 0 {
			values, err := r.redis.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, errors.Wrap(err, "load conversations")
			}
			for _, v := range values {
				s, ok := v.(string)
				if !ok {
					// expired between SCAN and MGET
					continue
				}
				c, err := decodeConversation([]byte(s))
				if err != nil {
					return nil, err
				}
				result = append(result, c)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}

func decodeConversation(data []byte) (conversation.Conversation, error) {
	var model models.Conversation
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, errors.Wrap(err, "unmarshal conversation")
	}
	return ToDomainConversation(model)
}
