package context

import (
	"context"
	"net/http"

	"github.com/cradoe/skypay/internal/models"
)

type contextKey string

const (
	authenticatedReviewerContextKey = contextKey("authenticatedReviewer")
)

func ContextSetAuthenticatedReviewer(r *http.Request, reviewer *models.Reviewer) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedReviewerContextKey, reviewer)
	return r.WithContext(ctx)
}

func ContextGetAuthenticatedReviewer(r *http.Request) *models.Reviewer {
	reviewer, ok := r.Context().Value(authenticatedReviewerContextKey).(*models.Reviewer)
	if !ok {
		return nil
	}

	return reviewer
}
