package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/persistence"
)

var epoch = time.Date(2026, 6, 1, 14, 30, 15, 123456789, time.UTC)

type fixture struct {
	repo  conversation.Repository
	clock *clockwork.FakeClock
	// advance moves both the application clock and the backend's TTL clock.
	advance func(d time.Duration)
}

type backend struct {
	name string
	new  func(t *testing.T, ttl time.Duration) fixture
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			new: func(t *testing.T, ttl time.Duration) fixture {
				t.Helper()
				clock := clockwork.NewFakeClockAt(epoch)
				repo := persistence.NewInmemConversationRepository(persistence.Options{TTL: ttl, Clock: clock})
				return fixture{repo: repo, clock: clock, advance: clock.Advance}
			},
		},
		{
			name: "redis",
			new: func(t *testing.T, ttl time.Duration) fixture {
				t.Helper()
				srv := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				clock := clockwork.NewFakeClockAt(epoch)
				repo := persistence.NewConversationRedisRepository(client, persistence.Options{TTL: ttl, Clock: clock})
				return fixture{repo: repo, clock: clock, advance: func(d time.Duration) {
					clock.Advance(d)
					srv.FastForward(d)
				}}
			},
		},
	}
}

func newConversation(t *testing.T, leadID, phoneNumber string, status lead.Status, lastMessageAt time.Time) conversation.Conversation {
	t.Helper()
	l := lead.New(leadID, "web", epoch.Add(-time.Hour))
	l.Phone = phoneNumber
	l.Status = status
	l.TextingConsent = true
	l.ConsentAt = epoch.Add(-30 * time.Minute)

	userMsg, err := conversation.NewUserMessage("Hi, I need a new roof", lastMessageAt.Add(-10*time.Minute))
	require.NoError(t, err)
	reply, err := conversation.NewAssistantMessage(conversation.AgentSDR, "Happy to help. When are you hoping to start?", lastMessageAt.Add(-9*time.Minute))
	require.NoError(t, err)

	c := conversation.New(l, conversation.PlatformSMS,
		conversation.WithCreatedAt(epoch.Add(-time.Hour)),
		conversation.WithLastMessageAt(lastMessageAt),
	)
	c = c.AppendMessage(userMsg).AppendMessage(reply)
	return c.SwitchAgent(conversation.AgentReminder, "status:appointment_scheduled", epoch.Add(-5*time.Minute))
}

func TestRepository_RoundTrip(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)
			c := newConversation(t, "lead-1", "5551234567", lead.StatusQualified, epoch)

			saved, err := f.repo.Save(ctx, c)
			require.NoError(t, err)
			want := persistence.ToDBConversation(saved)

			byID, err := f.repo.GetByID(ctx, c.ID())
			require.NoError(t, err)
			assert.Equal(t, want, persistence.ToDBConversation(byID))
			assert.Equal(t, c.CreatedAt(), byID.CreatedAt())
			assert.Equal(t, c.Lead().ConsentAt, byID.Lead().ConsentAt)

			byLead, err := f.repo.GetByLead(ctx, "lead-1")
			require.NoError(t, err)
			assert.Equal(t, want, persistence.ToDBConversation(byLead))

			for _, form := range []string{"5551234567", "15551234567", "+1 (555) 123-4567"} {
				byPhone, err := f.repo.GetByPhone(ctx, form)
				require.NoError(t, err, form)
				assert.Equal(t, want, persistence.ToDBConversation(byPhone), form)
			}
		})
	}
}

func TestRepository_PhoneStoredWithCountryCode(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)
			c := newConversation(t, "lead-1", "+1 555 123 4567", lead.StatusNew, epoch)
			_, err := f.repo.Save(ctx, c)
			require.NoError(t, err)

			got, err := f.repo.GetByPhone(ctx, "5551234567")
			require.NoError(t, err)
			assert.Equal(t, c.ID(), got.ID())
		})
	}
}

func TestRepository_NotFound(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)

			_, err := f.repo.GetByID(ctx, "missing")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			_, err = f.repo.GetByLead(ctx, "missing")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			_, err = f.repo.GetByPhone(ctx, "5550000000")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			_, err = f.repo.GetByPhone(ctx, "")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
		})
	}
}

func TestRepository_PhoneChangeDropsStaleIndex(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)
			c := newConversation(t, "lead-1", "5551234567", lead.StatusContacted, epoch)
			_, err := f.repo.Save(ctx, c)
			require.NoError(t, err)

			l := c.Lead()
			l.Phone = "5559876543"
			_, err = f.repo.Save(ctx, c.SetLead(l))
			require.NoError(t, err)

			_, err = f.repo.GetByPhone(ctx, "5551234567")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			got, err := f.repo.GetByPhone(ctx, "15559876543")
			require.NoError(t, err)
			assert.Equal(t, c.ID(), got.ID())
		})
	}
}

func TestRepository_TTLExpiresAllKeys(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, time.Hour)
			c := newConversation(t, "lead-1", "5551234567", lead.StatusContacted, epoch)
			_, err := f.repo.Save(ctx, c)
			require.NoError(t, err)

			f.advance(59 * time.Minute)
			_, err = f.repo.GetByLead(ctx, "lead-1")
			require.NoError(t, err)

			f.advance(2 * time.Minute)
			_, err = f.repo.GetByID(ctx, c.ID())
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			_, err = f.repo.GetByLead(ctx, "lead-1")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			_, err = f.repo.GetByPhone(ctx, "5551234567")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
		})
	}
}

func TestRepository_SaveRefreshesTTL(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, time.Hour)
			c := newConversation(t, "lead-1", "5551234567", lead.StatusContacted, epoch)
			_, err := f.repo.Save(ctx, c)
			require.NoError(t, err)

			f.advance(50 * time.Minute)
			_, err = f.repo.Save(ctx, c)
			require.NoError(t, err)
			f.advance(50 * time.Minute)

			_, err = f.repo.GetByPhone(ctx, "5551234567")
			require.NoError(t, err)
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)
			c := newConversation(t, "lead-1", "5551234567", lead.StatusContacted, epoch)
			_, err := f.repo.Save(ctx, c)
			require.NoError(t, err)

			require.NoError(t, f.repo.Delete(ctx, c.ID()))
			require.NoError(t, f.repo.Delete(ctx, c.ID()), "delete is idempotent")

			_, err = f.repo.GetByLead(ctx, "lead-1")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
			_, err = f.repo.GetByPhone(ctx, "5551234567")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
		})
	}
}

func TestRepository_DeleteKeepsIndexOwnedByNewerConversation(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)
			older := newConversation(t, "lead-1", "5551234567", lead.StatusContacted, epoch)
			_, err := f.repo.Save(ctx, older)
			require.NoError(t, err)
			newer := newConversation(t, "lead-2", "5551234567", lead.StatusContacted, epoch.Add(time.Minute))
			_, err = f.repo.Save(ctx, newer)
			require.NoError(t, err)
			require.NotEqual(t, older.ID(), newer.ID())

			require.NoError(t, f.repo.Delete(ctx, older.ID()))

			got, err := f.repo.GetByPhone(ctx, "5551234567")
			require.NoError(t, err)
			assert.Equal(t, newer.ID(), got.ID())
			_, err = f.repo.GetByLead(ctx, "lead-2")
			require.NoError(t, err)
			_, err = f.repo.GetByLead(ctx, "lead-1")
			require.ErrorIs(t, err, conversation.ErrConversationNotFound)
		})
	}
}

func TestRepository_ActiveAndFollowUpViews(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			f := b.new(t, persistence.DefaultTTL)

			stale := epoch.Add(-72 * time.Hour)
			fixtures := []conversation.Conversation{
				newConversation(t, "fresh-new", "5550000001", lead.StatusNew, epoch),
				newConversation(t, "stale-new", "5550000002", lead.StatusNew, stale),
				newConversation(t, "stale-qualified", "5550000003", lead.StatusQualified, stale),
				newConversation(t, "fresh-followup", "5550000004", lead.StatusFollowUp, epoch.Add(-time.Hour)),
				newConversation(t, "stale-won", "5550000005", lead.StatusWon, stale),
				newConversation(t, "stale-lost", "", lead.StatusLost, stale),
			}
			for _, c := range fixtures {
				_, err := f.repo.Save(ctx, c)
				require.NoError(t, err)
			}

			active, err := f.repo.GetActive(ctx)
			require.NoError(t, err)
			require.Len(t, active, 4)
			assert.Equal(t, []string{"fresh-new", "fresh-followup"}, leadIDs(active)[:2], "most recent first")
			assert.ElementsMatch(t, []string{"fresh-new", "stale-new", "stale-qualified", "fresh-followup"}, leadIDs(active))

			due, err := f.repo.GetNeedingFollowUp(ctx, 48*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, []string{"stale-qualified"}, leadIDs(due))

			due, err = f.repo.GetNeedingFollowUp(ctx, 30*time.Minute)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"stale-qualified", "fresh-followup"}, leadIDs(due))
		})
	}
}

func leadIDs(list []conversation.Conversation) []string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.LeadID())
	}
	return ids
}

func TestInmemRepository_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	repo := persistence.NewInmemConversationRepository(persistence.Options{TTL: time.Hour, Clock: clock})
	_, err := repo.Save(ctx, newConversation(t, "lead-1", "5551234567", lead.StatusNew, epoch))
	require.NoError(t, err)

	assert.Equal(t, 0, repo.Sweep())
	clock.Advance(2 * time.Hour)
	assert.Equal(t, 3, repo.Sweep())
}

func TestNewConversationRepository_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	client, err := persistence.NewRedisClient("127.0.0.1:1", 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo, backendName := persistence.NewConversationRepository(ctx, client, persistence.Options{})
	assert.Equal(t, "memory", backendName)
	assert.IsType(t, &persistence.InmemConversationRepository{}, repo)

	repo, backendName = persistence.NewConversationRepository(ctx, nil, persistence.Options{})
	assert.Equal(t, "memory", backendName)
	assert.NotNil(t, repo)
}

func TestNewConversationRepository_UsesRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := persistence.NewRedisClient("redis://"+srv.Addr()+"/0", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo, backendName := persistence.NewConversationRepository(context.Background(), client, persistence.Options{})
	assert.Equal(t, "redis", backendName)
	assert.IsType(t, &persistence.ConversationRepository{}, repo)
}
