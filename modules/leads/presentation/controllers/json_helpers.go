package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/httpapi"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	if id, ok := composables.UseRequestID(r.Context()); ok {
		meta["request_id"] = id
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

type validatable interface {
	Ok(ctx context.Context) (map[string]string, bool)
}

// decode reads the body into dto and validates it, writing the error response itself.
func decode(w http.ResponseWriter, r *http.Request, dto validatable) bool {
	if err := httpapi.DecodeJSON(w, r, dto); err != nil {
		if errors.Is(err, httpapi.ErrBodyTooLarge) {
			writeAPIError(w, r, http.StatusRequestEntityTooLarge, httpapi.CodeInvalidRequest, "request body too large", nil)
			return false
		}
		writeAPIError(w, r, http.StatusBadRequest, httpapi.CodeInvalidRequest, "invalid json body", map[string]string{"error": err.Error()})
		return false
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, httpapi.CodeValidationFailed, "validation failed", errs)
		return false
	}
	return true
}

// writeServiceError maps orchestrator errors onto status codes; anything unexpected is a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		writeAPIError(w, r, http.StatusNotFound, httpapi.CodeNotFound, "conversation not found", nil)
	case errors.Is(err, conversation.ErrEmptyMessage), errors.Is(err, conversation.ErrMessageTooLong):
		writeAPIError(w, r, http.StatusBadRequest, httpapi.CodeInvalidRequest, err.Error(), nil)
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("lead request failed")
		writeAPIError(w, r, http.StatusInternalServerError, httpapi.CodeInternal, "internal server error", nil)
	}
}
