package handler

import (
	"net/http"

	"github.com/cradoe/skypay/internal/request"
	"github.com/cradoe/skypay/internal/response"
	"github.com/cradoe/skypay/internal/validator"
)

// HandleRespondConsent is opened by directors from the consent link. The token
// in the path is the only credential.
func (h *RouteHandler) HandleRespondConsent(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Decision  string              `json:"decision"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.PermittedValue(input.Decision, "grant", "decline"), "Decision must be grant or decline")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	consent, err := h.Orchestrator.RespondConsent(r.Context(), r.PathValue("token"), input.Decision == "grant")
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	message := "Thank you, your response has been recorded"
	err = response.JSONOkResponse(w, consent, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
