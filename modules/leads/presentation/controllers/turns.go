package controllers

import (
	"net/http"

	"github.com/iota-uz/leadflow/modules/leads/presentation/controllers/dtos"
	"github.com/iota-uz/leadflow/modules/leads/presentation/mappers"
	"github.com/iota-uz/leadflow/modules/leads/presentation/viewmodels"
	"github.com/iota-uz/leadflow/modules/leads/services"
)

// turns runs inbound messages and events for both the API and the webhook routes.
type turns struct {
	orchestrator *services.Orchestrator
}

func (t turns) message(w http.ResponseWriter, r *http.Request, leadID string, dto *dtos.MessageDTO) {
	resp, err := t.orchestrator.HandleMessage(r.Context(), leadID, dto.Text, dto.PlatformOrDefault())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ResponseToTurn(resp))
}

func (t turns) event(w http.ResponseWriter, r *http.Request, leadID string, dto *dtos.EventDTO) {
	resp, err := t.orchestrator.HandleEvent(r.Context(), leadID, dto.Type, dto.Data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if resp == nil {
		writeJSON(w, http.StatusOK, viewmodels.Skipped{
			LeadID:  leadID,
			Skipped: true,
			Reason:  "lead closed or follow-up limit reached",
		})
		return
	}
	writeJSON(w, http.StatusOK, mappers.ResponseToTurn(resp))
}
