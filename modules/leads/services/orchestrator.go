package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/crm"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/modules/leads/domain/routing"
	"github.com/iota-uz/leadflow/modules/leads/domain/scoring"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/persistence"
	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/eventbus"
	"github.com/iota-uz/leadflow/pkg/ratelimit"
)

var tracer = otel.Tracer("leadflow/leads")

const DefaultFollowUpWeeklyLimit = 2

// Hand-off reasons recorded in conversation metadata.
const (
	ReasonSuggested = "suggested"
	ReasonStatus    = "status"
	ReasonEvent     = "event"
)

// NewLead is the partial lead captured at intake. Empty fields are unknown.
type NewLead struct {
	Name            string
	Email           string
	Phone           string
	City            string
	ServiceInterest string
	ProjectDetails  string
	Timeline        string
	Source          string
	TextingConsent  bool
}

// Response is the outcome of one orchestrated turn.
type Response struct {
	LeadID         string
	ConversationID string
	// Agent is the role that produced Message; NextAgent owns the conversation afterwards.
	Agent      conversation.AgentRole
	NextAgent  conversation.AgentRole
	Message    string
	Actions    []agents.Action
	Outcomes   []ActionOutcome
	Rejections []lead.Rejection
	// Persisted is false when the turn's state could not be saved. The reply is still returned.
	Persisted    bool
	Conversation conversation.Conversation
}

type OrchestratorConfig struct {
	Repo                conversation.Repository
	Agents              *agents.Registry
	CRM                 crm.Client
	Delivery            *DeliveryService
	Limiter             ratelimit.Limiter
	FollowUpWeeklyLimit int
	Thresholds          scoring.Thresholds
	Clock               clockwork.Clock
	// Events receives AgentSwitched, LeadStatusChanged and TurnCompleted. Optional.
	Events eventbus.EventBus
}

type Orchestrator struct {
	repo         conversation.Repository
	agents       *agents.Registry
	crm          crm.Client
	delivery     *DeliveryService
	limiter      ratelimit.Limiter
	followUpRule ratelimit.Rule
	thresholds   scoring.Thresholds
	clock        clockwork.Clock
	locks        *keyedMutex
	events       eventbus.EventBus
}

func NewOrchestrator(config OrchestratorConfig) *Orchestrator {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Repo == nil {
		config.Repo = persistence.NewInmemConversationRepository(persistence.Options{Clock: config.Clock})
	}
	if config.Agents == nil {
		config.Agents = agents.NewRegistry()
	}
	if config.Limiter == nil {
		config.Limiter = ratelimit.NewMemoryLimiter(config.Clock)
	}
	if config.Delivery == nil {
		config.Delivery = NewDeliveryService(DeliveryServiceConfig{Limiter: config.Limiter, Clock: config.Clock})
	}
	if config.FollowUpWeeklyLimit <= 0 {
		config.FollowUpWeeklyLimit = DefaultFollowUpWeeklyLimit
	}
	if config.Thresholds == (scoring.Thresholds{}) {
		config.Thresholds = scoring.DefaultThresholds()
	}
	return &Orchestrator{
		repo:         config.Repo,
		agents:       config.Agents,
		crm:          config.CRM,
		delivery:     config.Delivery,
		limiter:      config.Limiter,
		followUpRule: ratelimit.Rule{Max: config.FollowUpWeeklyLimit, Window: ratelimit.Week},
		thresholds:   config.Thresholds,
		clock:        config.Clock,
		locks:        newKeyedMutex(),
		events:       config.Events,
	}
}

func (o *Orchestrator) Repository() conversation.Repository {
	return o.repo
}

func (o *Orchestrator) startSpan(ctx context.Context, name, leadID string) (context.Context, trace.Span, *logrus.Entry) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.String("lead.id", leadID)))
	logger := composables.UseLogger(ctx).WithField("lead_id", leadID)
	return composables.WithLogger(ctx, logger), span, logger
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// HandleNewLead creates a lead and its conversation, syncs the contact to the CRM and
// produces the sdr opening message. A CRM failure is logged and does not fail intake.
func (o *Orchestrator) HandleNewLead(ctx context.Context, platform conversation.Platform, in NewLead) (_ *Response, err error) {
	leadID := uuid.NewString()
	ctx, span, logger := o.startSpan(ctx, "leads.HandleNewLead", leadID)
	defer func() { endSpan(span, err) }()
	defer o.locks.Lock(leadID)()

	now := o.clock.Now()
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = string(platform)
	}
	l, rejected := lead.New(leadID, source, now).Apply(o.intakeUpdates(in, now), now)
	logRejections(logger, rejected)
	l = o.syncContact(ctx, l)

	conv := conversation.New(l, platform,
		conversation.WithCreatedAt(now),
		conversation.WithLastMessageAt(now),
		conversation.WithCurrentAgent(conversation.AgentSDR),
	)
	logger.WithField("conversation_id", conv.ID()).Info("new lead received")

	agent, err := o.agents.Get(conv.CurrentAgent())
	if err != nil {
		o.save(ctx, conv)
		return nil, err
	}
	state := agents.State{Conversation: conv, Lead: l, Now: now}
	resp, err := o.timed(conv.CurrentAgent(), "opening", func() (agents.Response, error) {
		return agent.GenerateProactiveMessage(ctx, state, agents.Trigger{
			Event:       "new_lead",
			Description: "A new lead just arrived. Introduce yourself and start qualifying them.",
		})
	})
	if err != nil {
		o.save(ctx, conv)
		return nil, errors.Wrap(err, "generate opening message")
	}
	return o.finishTurn(ctx, conv, resp, now), nil
}

// HandleMessage runs one inbound turn for leadID, creating the conversation on first contact.
func (o *Orchestrator) HandleMessage(ctx context.Context, leadID, text string, platform conversation.Platform) (_ *Response, err error) {
	ctx, span, logger := o.startSpan(ctx, "leads.HandleMessage", leadID)
	defer func() { endSpan(span, err) }()
	defer o.locks.Lock(leadID)()

	now := o.clock.Now()
	msg, err := conversation.NewUserMessage(text, now)
	if err != nil {
		return nil, err
	}

	conv, err := o.repo.GetByLead(ctx, leadID)
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		l := o.syncContact(ctx, lead.New(leadID, string(platform), now))
		conv = conversation.New(l, platform, conversation.WithCreatedAt(now), conversation.WithLastMessageAt(now))
		logger.WithField("conversation_id", conv.ID()).Info("conversation created on first message")
	case err != nil:
		return nil, errors.Wrap(err, "load conversation")
	}
	conv = conv.AppendMessage(msg)

	target, reason := o.preTurnRole(logger, conv)
	conv = conv.ClearPendingAgent()
	conv = o.handOff(ctx, conv, target, reason, now)

	agent, err := o.agents.Get(conv.CurrentAgent())
	if err != nil {
		o.save(ctx, conv)
		return nil, err
	}
	state := agents.State{Conversation: conv, Lead: conv.Lead(), Now: now}
	resp, err := o.timed(conv.CurrentAgent(), "message", func() (agents.Response, error) {
		return agent.ProcessMessage(ctx, msg.Content(), state)
	})
	if err != nil {
		o.save(ctx, conv)
		return nil, errors.Wrap(err, "process message")
	}
	return o.finishTurn(ctx, conv, resp, now), nil
}

// preTurnRole honours a pending suggestion once; otherwise the lead's status decides.
func (o *Orchestrator) preTurnRole(logger *logrus.Entry, conv conversation.Conversation) (conversation.AgentRole, string) {
	if pending, ok := conv.PendingAgent(); ok {
		return pending, ReasonSuggested
	}
	status := conv.Lead().Status
	role, ok := routing.SelectRole(status)
	if !ok {
		logger.WithField("status", status).Warn("no role owns this status, defaulting to sdr")
	}
	return role, ReasonStatus
}

// HandleEvent runs a proactive turn for a scheduled trigger. Unknown events, terminal leads
// and throttled follow-ups yield a nil response without error.
func (o *Orchestrator) HandleEvent(ctx context.Context, leadID, eventType string, data map[string]string) (_ *Response, err error) {
	ctx, span, logger := o.startSpan(ctx, "leads.HandleEvent", leadID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("event.type", eventType))
	logger = logger.WithField("event", eventType)

	et, ok := ParseEventType(eventType)
	if !ok {
		logger.Warn("unknown event type ignored")
		return nil, nil
	}
	route := eventRoutes[et]

	defer o.locks.Lock(leadID)()

	conv, err := o.repo.GetByLead(ctx, leadID)
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	if conv.Lead().IsTerminal() {
		logger.WithField("status", conv.Lead().Status).Info("event skipped for closed lead")
		return nil, nil
	}

	if et == EventFollowUpDue {
		res, err := o.limiter.Allow(ctx, ratelimit.Key("followup", leadID, ratelimit.Weekly), o.followUpRule)
		if err != nil {
			return nil, errors.Wrap(err, "follow-up limiter")
		}
		if !res.Allowed {
			logger.WithField("retry_after", res.RetryAfter).Info("follow-up throttled")
			return nil, nil
		}
	}

	now := o.clock.Now()
	if route.status != "" && conv.Lead().Status != route.status {
		status := route.status
		l, rejected := conv.Lead().Apply(lead.Updates{Status: &status}, now)
		logRejections(logger, rejected)
		conv = conv.SetLead(l)
	}
	// a scheduled event outranks a suggestion left by an earlier turn
	conv = conv.ClearPendingAgent()
	conv = o.handOff(ctx, conv, route.role, ReasonEvent+":"+string(et), now)

	agent, err := o.agents.Get(conv.CurrentAgent())
	if err != nil {
		return nil, err
	}
	state := agents.State{Conversation: conv, Lead: conv.Lead(), Now: now}
	resp, err := o.timed(conv.CurrentAgent(), "proactive", func() (agents.Response, error) {
		return agent.GenerateProactiveMessage(ctx, state, agents.Trigger{
			Event:       string(et),
			Description: route.description,
			Data:        data,
		})
	})
	if err != nil {
		o.save(ctx, conv)
		return nil, errors.Wrap(err, "generate proactive message")
	}
	return o.finishTurn(ctx, conv, resp, now), nil
}

// finishTurn folds a role's response into the conversation, hands off for the next turn,
// persists, then applies the requested actions.
func (o *Orchestrator) finishTurn(ctx context.Context, conv conversation.Conversation, resp agents.Response, now time.Time) *Response {
	logger := composables.UseLogger(ctx)
	role := conv.CurrentAgent()
	before := conv.Lead()

	l, rejected := before.Apply(o.scoreTimeline(resp.LeadUpdates, now), now)
	logRejections(logger, rejected)
	conv = conv.SetLead(l)

	if strings.TrimSpace(resp.Message) != "" {
		msg, err := conversation.NewAssistantMessage(role, resp.Message, now)
		if err != nil {
			logger.WithError(err).Warn("assistant reply not recorded")
		} else {
			conv = conv.AppendMessage(msg)
		}
	}

	switch {
	case resp.SuggestedNextRole.Valid():
		conv = o.handOff(ctx, conv, resp.SuggestedNextRole, ReasonSuggested, now)
		conv = conv.SetPendingAgent(resp.SuggestedNextRole)
	case l.Status != before.Status:
		if next, ok := routing.SelectRole(l.Status); ok {
			conv = o.handOff(ctx, conv, next, ReasonStatus, now)
		}
	}

	conv, persisted := o.save(ctx, conv)
	conv, outcomes := o.applyActions(ctx, conv, resp.Actions, resp.Message)
	if persisted && conv.Lead().CRMContactID != l.CRMContactID {
		conv, persisted = o.save(ctx, conv)
	}
	o.publishTurn(ctx, conv, role, before.Status, len(resp.Actions), persisted, now)

	return &Response{
		LeadID:         conv.LeadID(),
		ConversationID: conv.ID(),
		Agent:          role,
		NextAgent:      conv.CurrentAgent(),
		Message:        resp.Message,
		Actions:        resp.Actions,
		Outcomes:       outcomes,
		Rejections:     rejected,
		Persisted:      persisted,
		Conversation:   conv,
	}
}

func (o *Orchestrator) handOff(ctx context.Context, conv conversation.Conversation, to conversation.AgentRole, reason string, now time.Time) conversation.Conversation {
	from := conv.CurrentAgent()
	if to == from || !to.Valid() {
		return conv
	}
	handoffs.WithLabelValues(string(from), string(to), reason).Inc()
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"reason": reason,
	}).Info("conversation handed off")
	publish(ctx, o.events, &AgentSwitched{
		LeadID:         conv.LeadID(),
		ConversationID: conv.ID(),
		From:           from,
		To:             to,
		Reason:         reason,
		At:             now,
	})
	return conv.SwitchAgent(to, reason, now)
}

func (o *Orchestrator) publishTurn(
	ctx context.Context,
	conv conversation.Conversation,
	role conversation.AgentRole,
	prevStatus lead.Status,
	actions int,
	persisted bool,
	now time.Time,
) {
	if o.events == nil {
		return
	}
	if l := conv.Lead(); l.Status != prevStatus {
		publish(ctx, o.events, &LeadStatusChanged{
			LeadID:         l.ID,
			ConversationID: conv.ID(),
			CRMContactID:   l.CRMContactID,
			From:           prevStatus,
			To:             l.Status,
			At:             now,
		})
	}
	publish(ctx, o.events, &TurnCompleted{
		LeadID:         conv.LeadID(),
		ConversationID: conv.ID(),
		Agent:          role,
		NextAgent:      conv.CurrentAgent(),
		Actions:        actions,
		Persisted:      persisted,
		At:             now,
	})
}

// scoreTimeline derives the temperature from a freshly observed timeline.
func (o *Orchestrator) scoreTimeline(u lead.Updates, now time.Time) lead.Updates {
	if u.Timeline == nil || strings.TrimSpace(*u.Timeline) == "" {
		return u
	}
	t := scoring.Score(*u.Timeline, now, o.thresholds)
	u.Temperature = &t
	return u
}

func (o *Orchestrator) intakeUpdates(in NewLead, now time.Time) lead.Updates {
	var u lead.Updates
	optional := func(s string) *string {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return &s
	}
	u.Name = optional(in.Name)
	u.Email = optional(in.Email)
	u.Phone = optional(in.Phone)
	u.City = optional(in.City)
	u.ServiceInterest = optional(in.ServiceInterest)
	u.ProjectDetails = optional(in.ProjectDetails)
	u.Timeline = optional(in.Timeline)
	if in.TextingConsent {
		consent := true
		u.TextingConsent = &consent
	}
	return o.scoreTimeline(u, now)
}

func (o *Orchestrator) syncContact(ctx context.Context, l lead.Lead) lead.Lead {
	if o.crm == nil {
		return l
	}
	id, err := o.crm.UpsertContact(ctx, l)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("crm contact sync failed")
		return l
	}
	l.CRMContactID = id
	return l
}

// save persists conv. A failure is logged and reported so the reply can still go out.
func (o *Orchestrator) save(ctx context.Context, conv conversation.Conversation) (conversation.Conversation, bool) {
	saved, err := o.repo.Save(ctx, conv)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).WithField("conversation_id", conv.ID()).Error("failed to persist conversation")
		return conv, false
	}
	return saved, true
}

func (o *Orchestrator) timed(role conversation.AgentRole, kind string, fn func() (agents.Response, error)) (agents.Response, error) {
	start := o.clock.Now()
	resp, err := fn()
	agentLatency.WithLabelValues(string(role), kind).Observe(o.clock.Since(start).Seconds())
	return resp, err
}

func logRejections(logger *logrus.Entry, rejected []lead.Rejection) {
	for _, r := range rejected {
		logger.WithFields(logrus.Fields{
			"field":  r.Field,
			"reason": r.Reason,
		}).Warn("lead update rejected")
	}
}
