package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/cradoe/skypay/internal/context"
	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/request"
	"github.com/cradoe/skypay/internal/response"
)

type reviewItem struct {
	ApplicantID  string              `json:"applicant_id"`
	BusinessName string              `json:"business_name"`
	BusinessType models.BusinessType `json:"business_type"`
	Email        string              `json:"email"`
	DirectorName string              `json:"director_name"`
	Escalated    bool                `json:"escalated"`
	WaitingSince time.Time           `json:"waiting_since"`
}

type reviewPage struct {
	Items []reviewItem `json:"items"`
	Total int          `json:"total"`
	Limit int          `json:"limit"`
	Page  int          `json:"page"`
}

// HandleListForReview pages through the review queue. Escalated applicants come
// first. search matches business name or email, start_date and end_date filter on
// the time the applicant entered review.
func (h *RouteHandler) HandleListForReview(w http.ResponseWriter, r *http.Request) {
	query := parseListQuery(r)

	applicants, err := h.Orchestrator.ListForReview(r.Context())
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	var matched []reviewItem
	for _, a := range applicants {
		if query.Search != "" && !strings.Contains(strings.ToLower(a.BusinessName), query.Search) && !strings.Contains(a.Email, query.Search) {
			continue
		}
		if !query.Within(a.UpdatedAt) {
			continue
		}

		matched = append(matched, reviewItem{
			ApplicantID:  a.ID,
			BusinessName: a.BusinessName,
			BusinessType: a.BusinessType,
			Email:        a.Email,
			DirectorName: a.DirectorName,
			Escalated:    a.EscalatedAt.Valid,
			WaitingSince: a.UpdatedAt,
		})
	}

	page := reviewPage{
		Items: []reviewItem{},
		Total: len(matched),
		Limit: query.Limit,
		Page:  query.Page,
	}
	if offset := query.Offset(); offset < len(matched) {
		page.Items = matched[offset:min(offset+query.Limit, len(matched))]
	}

	err = response.JSONOkResponse(w, page, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleAdminDecide(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Decision onboarding.Decision `json:"decision"`
		Reason   string              `json:"reason"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	reviewer := context.ContextGetAuthenticatedReviewer(r)
	if reviewer == nil {
		h.ErrHandler.AuthenticationRequired(w, r)
		return
	}

	status, err := h.Orchestrator.AdminDecide(r.Context(), r.PathValue("id"), input.Decision, reviewer.ID, input.Reason)
	if err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	data := map[string]any{
		"ApplicantID": r.PathValue("id"),
		"Status":      status,
	}

	message := "Decision recorded"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleAdminResendConsent lets a reviewer re-issue a consent the director
// declined or let expire.
func (h *RouteHandler) HandleAdminResendConsent(w http.ResponseWriter, r *http.Request) {
	h.resendConsent(w, r, true)
}
