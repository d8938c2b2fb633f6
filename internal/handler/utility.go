package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cradoe/skypay/internal/file"
	"github.com/cradoe/skypay/internal/response"
)

const maxSelfieBytes = 5 << 20

// HandleUploadSelfie stores the director selfie and returns the URL to send as
// selfie_url with the director identity step.
func (h *RouteHandler) HandleUploadSelfie(w http.ResponseWriter, r *http.Request) {
	applicantID := r.PathValue("id")

	if _, err := h.Orchestrator.GetApplicantStatus(r.Context(), applicantID); err != nil {
		h.ErrHandler.OnboardingError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSelfieBytes+1024)

	err := r.ParseMultipartForm(maxSelfieBytes)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("selfie must be a multipart upload of at most 5MB"))
		return
	}

	selfie, header, err := r.FormFile("selfie")
	if err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("error retrieving the selfie"))
		return
	}
	defer selfie.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		h.ErrHandler.BadRequest(w, r, errors.New("selfie must be an image"))
		return
	}

	url, err := h.FileUploader.UploadSelfie(r.Context(), applicantID, selfie)
	if errors.Is(err, file.ErrNotConfigured) {
		h.ErrHandler.ServiceUnavailable(w, r, err)
		return
	}
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"SelfieURL": url,
	}

	message := "Selfie uploaded successfully"
	err = response.JSONCreatedResponse(w, data, message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
