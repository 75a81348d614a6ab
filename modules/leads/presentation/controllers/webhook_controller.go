package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/leadflow/modules/leads/presentation/controllers/dtos"
	"github.com/iota-uz/leadflow/modules/leads/services"
	"github.com/iota-uz/leadflow/pkg/application"
	"github.com/iota-uz/leadflow/pkg/httpapi"
	"github.com/iota-uz/leadflow/pkg/webhooks"
)

// WebhookController accepts signed inbound messages and scheduler events.
// The lead id travels in the body.
type WebhookController struct {
	turns     turns
	verifier  webhooks.SignatureVerifier
	protector webhooks.ReplayProtector
	basePath  string
}

func NewWebhookController(app application.Application, verifier webhooks.SignatureVerifier, protector webhooks.ReplayProtector) application.Controller {
	return &WebhookController{
		turns:     turns{orchestrator: app.Service(services.Orchestrator{}).(*services.Orchestrator)},
		verifier:  verifier,
		protector: protector,
		basePath:  "/webhooks/v1",
	}
}

func (c *WebhookController) Key() string {
	return c.basePath
}

func (c *WebhookController) Register(r *mux.Router) {
	hooks := webhooks.Bind(r, c.basePath, c.verifier, c.protector, webhooks.WithMaxBodyBytes(httpapi.DefaultMaxBodyBytes))
	hooks.HandleFunc("/messages", instrument("webhooks.message", c.Message)).Methods(http.MethodPost)
	hooks.HandleFunc("/events", instrument("webhooks.event", c.Event)).Methods(http.MethodPost)
}

func (c *WebhookController) Message(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.MessageDTO{}
	if !decode(w, r, dto) {
		return
	}
	if errs, ok := dtos.RequireLeadID(nil, dto.LeadID); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, httpapi.CodeValidationFailed, "validation failed", errs)
		return
	}
	c.turns.message(w, r, dto.LeadID, dto)
}

func (c *WebhookController) Event(w http.ResponseWriter, r *http.Request) {
	dto := &dtos.EventDTO{}
	if !decode(w, r, dto) {
		return
	}
	if errs, ok := dtos.RequireLeadID(nil, dto.LeadID); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, httpapi.CodeValidationFailed, "validation failed", errs)
		return
	}
	c.turns.event(w, r, dto.LeadID, dto)
}
