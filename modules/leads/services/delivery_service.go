package services

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/infrastructure/sms"
	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/phone"
	"github.com/iota-uz/leadflow/pkg/ratelimit"
)

type SendStatus string

const (
	SendStatusSent          SendStatus = "sent"
	SendStatusQueued        SendStatus = "queued"
	SendStatusRateLimited   SendStatus = "rate_limited"
	SendStatusInvalidFormat SendStatus = "invalid_format"
	SendStatusError         SendStatus = "error"
)

const DefaultDailySMSLimit = 3

type SendOptions struct {
	To      string
	Message string
	// LeadID, when set, is the subject of the daily per-lead limit.
	LeadID   string
	Metadata map[string]string
}

// SendResult is the outcome of one Send call. Err is set for invalid_format and error.
type SendResult struct {
	Status       SendStatus
	MessageID    string
	ScheduledFor time.Time
	RetryAfter   time.Duration
	Err          error
}

func (r SendResult) Delivered() bool {
	return r.Status == SendStatusSent
}

type DeliveryServiceConfig struct {
	Transport  sms.Transport
	Limiter    ratelimit.Limiter
	QuietHours QuietHours
	DailyLimit int
	Clock      clockwork.Clock
}

type DeliveryService struct {
	transport  sms.Transport
	limiter    ratelimit.Limiter
	quietHours QuietHours
	rule       ratelimit.Rule
	clock      clockwork.Clock
}

func NewDeliveryService(config DeliveryServiceConfig) *DeliveryService {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Transport == nil {
		config.Transport = sms.NewLogTransport()
	}
	if config.Limiter == nil {
		config.Limiter = ratelimit.NewMemoryLimiter(config.Clock)
	}
	if config.DailyLimit <= 0 {
		config.DailyLimit = DefaultDailySMSLimit
	}
	return &DeliveryService{
		transport:  config.Transport,
		limiter:    config.Limiter,
		quietHours: config.QuietHours,
		rule:       ratelimit.Rule{Max: config.DailyLimit, Window: ratelimit.Day},
		clock:      config.Clock,
	}
}

// Send validates, throttles, defers during quiet hours, and finally dispatches a text.
// Ordinary failures are reported through the result, never as a Go error.
func (s *DeliveryService) Send(ctx context.Context, opts SendOptions) SendResult {
	logger := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"to":      phone.Mask(opts.To),
		"lead_id": opts.LeadID,
	})
	result := s.send(ctx, opts, logger)
	deliveryResults.WithLabelValues(string(result.Status)).Inc()
	return result
}

func (s *DeliveryService) send(ctx context.Context, opts SendOptions, logger *logrus.Entry) SendResult {
	to, err := phone.E164(opts.To)
	if err != nil {
		logger.WithError(err).Warn("sms rejected: invalid destination")
		return SendResult{Status: SendStatusInvalidFormat, Err: err}
	}

	if opts.LeadID != "" {
		res, err := s.limiter.Allow(ctx, ratelimit.Key("sms", opts.LeadID, ratelimit.Daily), s.rule)
		if err != nil {
			logger.WithError(err).Error("sms rate limiter unavailable")
			return SendResult{Status: SendStatusError, Err: err}
		}
		if !res.Allowed {
			logger.WithField("retry_after", res.RetryAfter).Info("sms rate limited")
			return SendResult{Status: SendStatusRateLimited, RetryAfter: res.RetryAfter}
		}
	}

	now := s.clock.Now()
	if IsQuietHours(s.quietHours, now) {
		scheduled := NextAllowedTime(s.quietHours, now)
		logger.WithField("scheduled_for", scheduled).Info("sms deferred: quiet hours")
		return SendResult{Status: SendStatusQueued, ScheduledFor: scheduled}
	}

	id, err := s.transport.Send(ctx, sms.Message{To: to, Message: opts.Message, Metadata: opts.Metadata})
	if err != nil {
		fields := logrus.Fields{}
		var terr *sms.TransportError
		if errors.As(err, &terr) {
			fields["kind"] = terr.Kind
			fields["status_code"] = terr.StatusCode
		}
		logger.WithFields(fields).WithError(err).Error("sms transport failed")
		return SendResult{Status: SendStatusError, Err: err}
	}
	logger.WithField("message_id", id).Info("sms sent")
	return SendResult{Status: SendStatusSent, MessageID: id}
}
