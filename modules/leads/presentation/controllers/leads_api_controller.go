package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/leadflow/modules/leads/presentation/controllers/dtos"
	"github.com/iota-uz/leadflow/modules/leads/presentation/mappers"
	"github.com/iota-uz/leadflow/modules/leads/services"
	"github.com/iota-uz/leadflow/pkg/application"
	"github.com/iota-uz/leadflow/pkg/httpapi"
)

const defaultFollowUpAge = 24 * time.Hour

// conversations expire long before a year of silence
const maxFollowUpAgeHours = 24 * 365

type LeadsAPIController struct {
	app          application.Application
	orchestrator *services.Orchestrator
	turns        turns
	basePath     string
}

func NewLeadsAPIController(app application.Application) application.Controller {
	orchestrator := app.Service(services.Orchestrator{}).(*services.Orchestrator)
	return &LeadsAPIController{
		app:          app,
		orchestrator: orchestrator,
		turns:        turns{orchestrator: orchestrator},
		basePath:     "/api/v1",
	}
}

func (c *LeadsAPIController) Key() string {
	return c.basePath
}

func (c *LeadsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.basePath).Subrouter()

	api.HandleFunc("/leads", instrument("leads.create", c.CreateLead)).Methods(http.MethodPost)
	api.HandleFunc("/leads/{lead_id}/messages", instrument("leads.message", c.PostMessage)).Methods(http.MethodPost)
	api.HandleFunc("/leads/{lead_id}/events", instrument("leads.event", c.PostEvent)).Methods(http.MethodPost)
	api.HandleFunc("/leads/{lead_id}/conversation", instrument("leads.conversation", c.GetConversation)).Methods(http.MethodGet)

	api.HandleFunc("/conversations/active", instrument("conversations.active", c.ListActive)).Methods(http.MethodGet)
	api.HandleFunc("/conversations/follow-up", instrument("conversations.follow_up", c.ListFollowUp)).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{conversation_id}/actions", instrument("conversations.actions", c.ApplyActions)).Methods(http.MethodPost)
}

func (c *LeadsAPIController) CreateLead(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.CreateLeadDTO{}
	if !decode(w, r, dto) {
		return
	}
	resp, err := c.orchestrator.HandleNewLead(r.Context(), dto.PlatformOrDefault(), dto.ToNewLead())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.ResponseToTurn(resp))
}

func (c *LeadsAPIController) PostMessage(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.MessageDTO{}
	if !decode(w, r, dto) {
		return
	}
	c.turns.message(w, r, mux.Vars(r)["lead_id"], dto)
}

func (c *LeadsAPIController) PostEvent(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.EventDTO{}
	if !decode(w, r, dto) {
		return
	}
	c.turns.event(w, r, mux.Vars(r)["lead_id"], dto)
}

func (c *LeadsAPIController) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := c.orchestrator.Repository().GetByLead(r.Context(), mux.Vars(r)["lead_id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ConversationToViewModel(conv))
}

func (c *LeadsAPIController) ListActive(w http.ResponseWriter, r *http.Request) {
	list, err := c.orchestrator.Repository().GetActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": mappers.ConversationsToSummaries(list)})
}

func (c *LeadsAPIController) ListFollowUp(w http.ResponseWriter, r *http.Request) {
	maxAge := defaultFollowUpAge
	if v := strings.TrimSpace(r.URL.Query().Get("max_age_hours")); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 || hours > maxFollowUpAgeHours {
			writeAPIError(w, r, http.StatusBadRequest, httpapi.CodeInvalidRequest, "max_age_hours must be a positive integer no greater than 8760", nil)
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}
	list, err := c.orchestrator.Repository().GetNeedingFollowUp(r.Context(), maxAge)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"max_age_hours": int(maxAge.Hours()),
		"conversations": mappers.ConversationsToSummaries(list),
	})
}

func (c *LeadsAPIController) ApplyActions(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.ApplyActionsDTO{}
	if !decode(w, r, dto) {
		return
	}
	outcomes, err := c.orchestrator.ApplyActions(r.Context(), mux.Vars(r)["conversation_id"], dto.ToActions())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, mappers.OutcomeToViewModel(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": out})
}
