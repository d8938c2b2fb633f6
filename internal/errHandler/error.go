package errHandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/cradoe/skypay/internal/helper"
	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/response"
	"github.com/cradoe/skypay/internal/smtp"
)

type ErrorRepository struct {
	notificationEmail string
	logger            *slog.Logger
	help              *helper.HelperRepository
	mailer            smtp.MailerInterface
}

func New(notificationEmail string, mailer smtp.MailerInterface, logger *slog.Logger, help *helper.HelperRepository) *ErrorRepository {
	return &ErrorRepository{
		notificationEmail: notificationEmail,
		logger:            logger,
		help:              help,
		mailer:            mailer,
	}
}

func (e *ErrorRepository) ReportServerError(r *http.Request, err error) {
	var (
		message = err.Error()
		method  string
		url     string
		trace   = string(debug.Stack())
	)

	if r != nil {
		method = r.Method
		url = r.URL.String()
	}

	requestAttrs := slog.Group("request", "method", method, "url", url)
	e.logger.Error(message, requestAttrs, "trace", trace)

	if e.notificationEmail == "" || e.mailer == nil || e.help == nil {
		return
	}

	data := e.help.NewEmailData()
	data["Message"] = message
	data["RequestMethod"] = method
	data["RequestURL"] = url
	data["Trace"] = trace

	// failures here are logged by the background task and never reported again
	e.help.BackgroundTask(r, func() error {
		return e.mailer.Send(e.notificationEmail, data, "error-notification.tmpl")
	})
}

type Error struct {
	w       http.ResponseWriter
	r       *http.Request
	errors  any
	status  int
	message string
	headers http.Header
}

func (e *ErrorRepository) ErrorMessage(d *Error) {
	if d.message != "" {
		d.message = strings.ToUpper(d.message[:1]) + d.message[1:]
	}

	err := response.JSONErrorResponse(d.w, d.errors, d.message, d.status, d.headers)
	if err != nil {
		e.ReportServerError(d.r, err)
		d.w.WriteHeader(http.StatusInternalServerError)
	}
}

func (e *ErrorRepository) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	e.ReportServerError(r, err)

	message := "The server encountered a problem and could not process your request"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusInternalServerError,
		message: message,
	})
}

func (e *ErrorRepository) NotFound(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource could not be found"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusNotFound,
		message: message,
	})
}

func (e *ErrorRepository) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("The %s method is not supported for this resource", r.Method)
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusMethodNotAllowed,
		message: message,
	})
}

func (e *ErrorRepository) BadRequest(w http.ResponseWriter, r *http.Request, err error) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusBadRequest,
		message: err.Error(),
	})
}

func (e *ErrorRepository) FailedValidation(w http.ResponseWriter, r *http.Request, v any) {
	message := "Validation failed"

	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnprocessableEntity,
		message: message,
		errors:  v,
	})
}

func (e *ErrorRepository) Conflict(w http.ResponseWriter, r *http.Request, err error) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusConflict,
		message: err.Error(),
	})
}

func (e *ErrorRepository) Forbidden(w http.ResponseWriter, r *http.Request, err error) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusForbidden,
		message: err.Error(),
	})
}

func (e *ErrorRepository) ServiceUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	headers := make(http.Header)
	headers.Set("Retry-After", "5")

	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusServiceUnavailable,
		message: err.Error(),
		headers: headers,
	})
}

func (e *ErrorRepository) InvalidAuthenticationToken(w http.ResponseWriter, r *http.Request) {
	headers := make(http.Header)
	headers.Set("WWW-Authenticate", "Bearer")

	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnauthorized,
		message: "Invalid authentication token",
		headers: headers,
	})
}

func (e *ErrorRepository) AuthenticationRequired(w http.ResponseWriter, r *http.Request) {
	message := "You must be authenticated to access this resource"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnauthorized,
		message: message,
	})
}

// OnboardingError writes the response for an error returned by the orchestrator.
// Anything outside the onboarding taxonomy is a server error.
func (e *ErrorRepository) OnboardingError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *onboarding.InputError
	var failure *onboarding.StepFailure

	switch {
	case errors.As(err, &inputErr):
		e.FailedValidation(w, r, map[string]string{inputErr.Field: inputErr.Message})

	case errors.As(err, &failure):
		e.StepFailed(w, r, failure, failure)

	case errors.Is(err, onboarding.ErrApplicantNotFound), errors.Is(err, onboarding.ErrConsentNotFound):
		e.NotFound(w, r)

	case errors.Is(err, onboarding.ErrConflict), errors.Is(err, onboarding.ErrInvalidState):
		e.Conflict(w, r, err)

	case errors.Is(err, onboarding.ErrConsentDeclined), errors.Is(err, onboarding.ErrConsentExpired):
		e.Conflict(w, r, err)

	case errors.Is(err, onboarding.ErrAttemptsExceeded):
		e.Forbidden(w, r, err)

	case errors.Is(err, onboarding.ErrProviderTransient):
		e.ServiceUnavailable(w, r, onboarding.ErrProviderTransient)

	case errors.Is(err, context.DeadlineExceeded):
		e.ServiceUnavailable(w, r, errors.New("the applicant is busy with another request, try again shortly"))

	default:
		e.ServerError(w, r, err)
	}
}

// StepFailed answers a step attempt that ran but did not verify. The body carries
// the step result so the client can show attempts left and the reason.
func (e *ErrorRepository) StepFailed(w http.ResponseWriter, r *http.Request, failure *onboarding.StepFailure, body any) {
	status := http.StatusUnprocessableEntity

	switch failure.Reason {
	case models.FailureProviderTransient, models.FailureTimedOut:
		status = http.StatusServiceUnavailable
	case models.FailureAttemptsExceeded:
		status = http.StatusForbidden
	case models.FailureConsentDeclined, models.FailureConsentExpired:
		status = http.StatusConflict
	}

	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  status,
		message: failure.Error(),
		errors:  body,
	})
}
