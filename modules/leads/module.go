package leads

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/crm"
	"github.com/iota-uz/leadflow/modules/leads/domain/scoring"
	crmclient "github.com/iota-uz/leadflow/modules/leads/infrastructure/crm"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/llm"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/persistence"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/sms"
	"github.com/iota-uz/leadflow/modules/leads/presentation/controllers"
	"github.com/iota-uz/leadflow/modules/leads/services"
	"github.com/iota-uz/leadflow/pkg/application"
	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/configuration"
	"github.com/iota-uz/leadflow/pkg/ratelimit"
	"github.com/iota-uz/leadflow/pkg/webhooks"
)

const sweepInterval = 10 * time.Minute

type ModuleOptions struct {
	// Config defaults to the process configuration.
	Config *configuration.Configuration
	Clock  clockwork.Clock
	// Redis overrides the client built from Config.Redis.URL.
	Redis redis.UniversalClient
	// Background bounds the sweepers started for in-memory stores.
	Background context.Context
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Name() string {
	return "leads"
}

func (m *Module) Register(app application.Application) error {
	conf := m.options.Config
	if conf == nil {
		conf = configuration.Use()
	}
	clock := m.options.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	background := m.options.Background
	if background == nil {
		background = context.Background()
	}
	logger := logrus.NewEntry(app.Logger()).WithField("module", m.Name())
	ctx := composables.WithLogger(background, logger)

	client, err := m.redisClient(conf)
	if err != nil {
		logger.WithError(err).Warn("redis client not configured")
	}
	repo, backend := persistence.NewConversationRepository(ctx, client, persistence.Options{
		KeyPrefix: conf.Redis.KeyPrefix,
		TTL:       conf.Redis.ConversationTTL,
		Clock:     clock,
	})
	if inmem, ok := repo.(*persistence.InmemConversationRepository); ok {
		go sweep(ctx, clock, "conversations", inmem.Sweep)
	}
	// a nil *redis.Client must not reach code that checks the interface for nil
	var shared redis.UniversalClient
	if backend == "redis" {
		shared = client
	}

	limiter := newLimiter(ctx, conf, shared, clock)

	quietHours, err := services.NewQuietHours(conf.QuietHours.Enabled, conf.QuietHours.Start, conf.QuietHours.End, conf.QuietHours.Timezone)
	if err != nil {
		return errors.Wrap(err, "quiet hours")
	}
	crmClient, err := newCRMClient(conf)
	if err != nil {
		return err
	}

	delivery := services.NewDeliveryService(services.DeliveryServiceConfig{
		Transport:  newTransport(conf),
		Limiter:    limiter,
		QuietHours: quietHours,
		DailyLimit: conf.SMS.DailyLimit,
		Clock:      clock,
	})
	orchestrator := services.NewOrchestrator(services.OrchestratorConfig{
		Repo:                repo,
		Agents:              agents.NewRegistry(newAgents(conf)...),
		CRM:                 crmClient,
		Delivery:            delivery,
		Limiter:             limiter,
		FollowUpWeeklyLimit: conf.SMS.FollowUpWeeklyLimit,
		Thresholds: scoring.Thresholds{
			HotMonths:  conf.Scoring.HotThresholdMonths,
			WarmMonths: conf.Scoring.WarmThresholdMonths,
		},
		Clock:  clock,
		Events: app.EventPublisher(),
	})
	subscribe(app.EventPublisher(), crmClient)

	app.RegisterServices(delivery, orchestrator)
	app.RegisterControllers(controllers.NewLeadsAPIController(app))

	if conf.Webhook.Secret == "" {
		logger.Info("WEBHOOK_SECRET not set, webhook routes disabled")
		return nil
	}
	var protector webhooks.ReplayProtector
	if shared != nil {
		protector = webhooks.NewRedisReplayProtector(shared, "", conf.Webhook.ReplayTTL)
	} else {
		protector = webhooks.NewMemoryReplayProtector(conf.Webhook.ReplayTTL, clock)
	}
	app.RegisterControllers(controllers.NewWebhookController(
		app,
		webhooks.NewHMACVerifier(conf.Webhook.Secret, conf.Webhook.MaxSkew, clock),
		protector,
	))
	return nil
}

func (m *Module) redisClient(conf *configuration.Configuration) (redis.UniversalClient, error) {
	if m.options.Redis != nil {
		return m.options.Redis, nil
	}
	client, err := persistence.NewRedisClient(conf.Redis.URL, conf.Redis.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newLimiter(ctx context.Context, conf *configuration.Configuration, client redis.UniversalClient, clock clockwork.Clock) ratelimit.Limiter {
	logger := composables.UseLogger(ctx)
	if conf.SMS.LimiterStorage == "redis" && client != nil {
		logger.WithField("backend", "redis").Info("sms limiter ready")
		return ratelimit.NewRedisLimiter(client, "", clock)
	}
	limiter := ratelimit.NewMemoryLimiter(clock)
	go limiter.Run(ctx, conf.SMS.LimiterSweep, logger)
	logger.WithField("backend", "memory").Info("sms limiter ready")
	return limiter
}

func newCRMClient(conf *configuration.Configuration) (crm.Client, error) {
	if conf.CRM.BaseURL == "" {
		return crmclient.NewLogClient(), nil
	}
	client, err := crmclient.NewHTTPClient(crmclient.Config{
		BaseURL:    conf.CRM.BaseURL,
		APIKey:     conf.CRM.APIKey,
		Timeout:    conf.CRM.Timeout,
		MaxRetries: conf.CRM.MaxRetries,
	})
	if err != nil {
		return nil, errors.Wrap(err, "crm client")
	}
	return client, nil
}

func newTransport(conf *configuration.Configuration) sms.Transport {
	if conf.SMS.GatewayURL == "" {
		return sms.NewLogTransport()
	}
	return sms.NewHTTPTransport(conf.SMS.GatewayURL, conf.SMS.GatewayToken, conf.SMS.Timeout)
}

// newAgents falls back to canned templates when no model key is configured.
func newAgents(conf *configuration.Configuration) []agents.Agent {
	if conf.OpenAI.Key == "" {
		return llm.NewTemplateAgents()
	}
	return llm.NewAgents(llm.Config{
		APIKey:      conf.OpenAI.Key,
		BaseURL:     conf.OpenAI.BaseURL,
		Model:       conf.OpenAI.Model,
		Temperature: conf.OpenAI.Temperature,
		MaxTokens:   conf.OpenAI.MaxTokens,
		MaxRetries:  2,
	})
}

func sweep(ctx context.Context, clock clockwork.Clock, name string, fn func() int) {
	ticker := clock.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := fn(); removed > 0 {
				composables.UseLogger(ctx).WithFields(logrus.Fields{
					"store":   name,
					"removed": removed,
				}).Debug("swept expired entries")
			}
		}
	}
}
