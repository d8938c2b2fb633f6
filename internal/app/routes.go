package app

import (
	"net/http"

	"github.com/cradoe/skypay/internal/handler"
	"github.com/cradoe/skypay/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	mid := middleware.New(app.errorHandler, app.Logger, app.DB.Reviewer(), &app.Config)

	h := handler.NewRouteHandler(&handler.RouteHandler{
		ErrHandler:   app.errorHandler,
		Orchestrator: app.Orchestrator,
		DB:           app.DB,
		Helper:       app.helper,
		Config:       &app.Config,
		FileUploader: app.FileUploader,
		Logger:       app.Logger,
	})

	mux.HandleFunc("GET /status", h.HandleHealthCheck)

	// applicant-facing onboarding
	mux.HandleFunc("POST /applicants", h.HandleStartApplication)
	mux.HandleFunc("GET /applicants/{id}", h.HandleGetApplicant)
	mux.HandleFunc("POST /applicants/{id}/otp", h.HandleSendContactOTP)
	mux.HandleFunc("POST /applicants/{id}/steps/{kind}", h.HandleSubmitStep)
	mux.HandleFunc("POST /applicants/{id}/selfie", h.HandleUploadSelfie)
	mux.HandleFunc("POST /applicants/{id}/consents/resend", h.HandleResendConsent)

	// director-facing consent link
	mux.HandleFunc("POST /consents/{token}", h.HandleRespondConsent)

	mux.HandleFunc("POST /auth/login", h.HandleAuthLogin)

	// reviewers
	mux.Handle("GET /admin/applicants", mid.RequireReviewer(http.HandlerFunc(h.HandleListForReview)))
	mux.Handle("POST /admin/applicants/{id}/decision", mid.RequireReviewer(http.HandlerFunc(h.HandleAdminDecide)))
	mux.Handle("POST /admin/applicants/{id}/consents/resend", mid.RequireReviewer(http.HandlerFunc(h.HandleAdminResendConsent)))

	return mid.LogAccess(mid.RecoverPanic(mid.Authenticate(mux)))
}
