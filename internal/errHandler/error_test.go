package errHandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cradoe/skypay/internal/helper"
	"github.com/cradoe/skypay/internal/mocks"
	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestErrHandler(email string, mailer *mocks.MockMailer, wg *sync.WaitGroup) *ErrorRepository {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(email, mailer, logger, helper.New("https://skypay.test", wg, logger))
}

func TestOnboardingError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"Invalid input", &onboarding.InputError{Field: "email", Message: "must be a valid email address"}, http.StatusUnprocessableEntity},
		{"Applicant not found", onboarding.ErrApplicantNotFound, http.StatusNotFound},
		{"Consent not found", onboarding.ErrConsentNotFound, http.StatusNotFound},
		{"Conflict", fmt.Errorf("save step: %w", onboarding.ErrConflict), http.StatusConflict},
		{"Invalid state", fmt.Errorf("%w: applicant is activated", onboarding.ErrInvalidState), http.StatusConflict},
		{"Consent expired", onboarding.ErrConsentExpired, http.StatusConflict},
		{"Attempts exceeded", onboarding.ErrAttemptsExceeded, http.StatusForbidden},
		{"Provider transient", onboarding.ErrProviderTransient, http.StatusServiceUnavailable},
		{"Lock wait", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"Unknown", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestErrHandler("", nil, nil)

			rr := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/applicants/a1/steps/contact_verification", nil)

			e.OnboardingError(rr, r, tt.err)

			assert.Equal(t, tt.status, rr.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestOnboardingErrorCarriesField(t *testing.T) {
	e := newTestErrHandler("", nil, nil)
	rr := httptest.NewRecorder()

	e.OnboardingError(rr, httptest.NewRequest("POST", "/applicants", nil), &onboarding.InputError{Field: "phone", Message: "must be a valid phone number"})

	var body struct {
		Error map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "must be a valid phone number", body.Error["phone"])
}

func TestStepFailed(t *testing.T) {
	e := newTestErrHandler("", nil, nil)

	tests := []struct {
		reason models.FailureReason
		status int
	}{
		{models.FailureNoMatch, http.StatusUnprocessableEntity},
		{models.FailureProviderTransient, http.StatusServiceUnavailable},
		{models.FailureAttemptsExceeded, http.StatusForbidden},
		{models.FailureConsentDeclined, http.StatusConflict},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		failure := &onboarding.StepFailure{Kind: models.StepSettlementAccountVerification, Reason: tt.reason, Detail: "detail"}

		e.StepFailed(rr, httptest.NewRequest("POST", "/", nil), failure, failure)
		assert.Equal(t, tt.status, rr.Code, string(tt.reason))
	}
}

func TestServerErrorNotifies(t *testing.T) {
	var wg sync.WaitGroup
	mailer := new(mocks.MockMailer)
	mailer.On("Send", "ops@skypay.test", mock.MatchedBy(func(data map[string]any) bool {
		return data["Message"] == "disk full" && data["RequestMethod"] == "GET"
	}), []string{"error-notification.tmpl"}).Return(nil).Once()

	e := newTestErrHandler("ops@skypay.test", mailer, &wg)
	rr := httptest.NewRecorder()

	e.ServerError(rr, httptest.NewRequest("GET", "/applicants/a1", nil), errors.New("disk full"))
	wg.Wait()

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	mailer.AssertExpectations(t)
}

func TestReportServerErrorWithoutRequest(t *testing.T) {
	e := newTestErrHandler("", nil, nil)
	assert.NotPanics(t, func() { e.ReportServerError(nil, errors.New("worker failed")) })
}
