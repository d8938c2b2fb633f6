package handler

import (
	"net/http"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/request"
	"github.com/cradoe/skypay/internal/response"
)

const idempotencyKeyHeader = "Idempotency-Key"

func (h *RouteHandler) HandleStartApplication(w http.ResponseWriter, r *http.Request) {
	var input onboarding.StartInput

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	applicant, err := h.Orchestrator.StartApplication(r.Context(), input)
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	data := map[string]any{
		"ApplicantID":  applicant.ID,
		"Status":       applicant.Status,
		"BusinessType": applicant.BusinessType,
		"NextStep":     models.StepContactVerification,
	}

	message := "Application started"
	err = response.JSONCreatedResponse(w, data, message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleSendContactOTP(w http.ResponseWriter, r *http.Request) {
	sent, err := h.Orchestrator.SendContactOTP(r.Context(), r.PathValue("id"))
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	message := "Verification codes sent"
	if len(sent) == 0 {
		message = "Contact details are already verified"
	}

	err = response.JSONOkResponse(w, sent, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleSubmitStep runs one attempt of the step named in the path. The client
// chooses the Idempotency-Key and sends the same one when it retries.
func (h *RouteHandler) HandleSubmitStep(w http.ResponseWriter, r *http.Request) {
	var payload onboarding.StepPayload

	err := request.DecodeJSON(w, r, &payload)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	kind := models.StepKind(r.PathValue("kind"))
	key := r.Header.Get(idempotencyKeyHeader)

	result, err := h.Orchestrator.SubmitStep(r.Context(), r.PathValue("id"), kind, payload, key)
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	if result.Failure != nil {
		h.ErrHandler.StepFailed(w, r, result.Failure, result)
		return
	}

	message := "Step submitted"
	if result.Step.Status == models.StepVerified {
		message = "Step verified"
	}

	err = response.JSONOkResponse(w, result, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleGetApplicant(w http.ResponseWriter, r *http.Request) {
	view, err := h.Orchestrator.GetApplicantStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, view, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleResendConsent(w http.ResponseWriter, r *http.Request) {
	h.resendConsent(w, r, false)
}

func (h *RouteHandler) resendConsent(w http.ResponseWriter, r *http.Request, override bool) {
	var input struct {
		DirectorEmail string `json:"director_email"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	consent, err := h.Orchestrator.ResendConsent(r.Context(), r.PathValue("id"), input.DirectorEmail, override)
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	message := "Consent link sent"
	err = response.JSONOkResponse(w, consent, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
