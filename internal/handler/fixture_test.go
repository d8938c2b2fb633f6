package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cradoe/gopass"
	"github.com/cradoe/skypay/internal/errHandler"
	"github.com/cradoe/skypay/internal/helper"
	"github.com/cradoe/skypay/internal/middleware"
	"github.com/cradoe/skypay/internal/mocks"
	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/repository"
	"github.com/stretchr/testify/require"
)

const (
	testReviewerEmail    = "reviewer@skypay.test"
	testReviewerPassword = "Sky!Pay2024#Review"
)

type capturingNotifier struct {
	mu    sync.Mutex
	codes map[models.OTPChannel]string
	links []provider.ConsentRequest
}

func (n *capturingNotifier) SendOTP(ctx context.Context, channel models.OTPChannel, recipient, code string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[models.OTPChannel]string)
	}
	n.codes[channel] = code
	return nil
}

func (n *capturingNotifier) SendConsentLink(ctx context.Context, req provider.ConsentRequest, link provider.ConsentLink) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, req)
	return nil
}

func (n *capturingNotifier) code(channel models.OTPChannel) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[channel]
}

func (n *capturingNotifier) tokens() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []string
	for _, l := range n.links {
		out = append(out, l.Token)
	}
	return out
}

type fakeUploader struct {
	received []byte
	err      error
}

func (u *fakeUploader) UploadSelfie(ctx context.Context, applicantID string, file io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	u.received = b
	return "https://cdn.test/selfies/" + applicantID + ".jpg", nil
}

type testServer struct {
	handler  http.Handler
	db       *repository.MemoryDatabase
	notifier *capturingNotifier
	uploader *fakeUploader
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := mocks.Config()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := repository.NewMemoryDatabase()
	notifier := &capturingNotifier{}
	uploader := &fakeUploader{}

	require.NoError(t, db.Bank().Upsert(context.Background(), models.Bank{Code: "044", Name: "Access Bank"}))

	hashed, err := gopass.Hash(testReviewerPassword)
	require.NoError(t, err)
	require.NoError(t, db.Reviewer().Upsert(context.Background(), &models.Reviewer{
		Email:          testReviewerEmail,
		Name:           "Reviewer",
		HashedPassword: hashed,
	}))

	orch := onboarding.New(onboarding.Config{
		DB:       db,
		Provider: provider.NewSandboxClient(notifier, cfg.Provider.ConsentLinkBase),
		Notifier: notifier,
		Policy:   cfg.Onboarding,
		Logger:   logger,
	})

	help := helper.New(cfg.BaseURL, nil, logger)
	errs := errHandler.New("", nil, logger, help)
	mid := middleware.New(errs, logger, db.Reviewer(), cfg)

	h := NewRouteHandler(&RouteHandler{
		ErrHandler:   errs,
		Orchestrator: orch,
		DB:           db,
		Helper:       help,
		Config:       cfg,
		FileUploader: uploader,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.HandleHealthCheck)
	mux.HandleFunc("POST /applicants", h.HandleStartApplication)
	mux.HandleFunc("POST /applicants/{id}/otp", h.HandleSendContactOTP)
	mux.HandleFunc("POST /applicants/{id}/steps/{kind}", h.HandleSubmitStep)
	mux.HandleFunc("GET /applicants/{id}", h.HandleGetApplicant)
	mux.HandleFunc("POST /applicants/{id}/consents/resend", h.HandleResendConsent)
	mux.HandleFunc("POST /applicants/{id}/selfie", h.HandleUploadSelfie)
	mux.HandleFunc("POST /consents/{token}", h.HandleRespondConsent)
	mux.HandleFunc("POST /auth/login", h.HandleAuthLogin)
	mux.Handle("GET /admin/applicants", mid.RequireReviewer(http.HandlerFunc(h.HandleListForReview)))
	mux.Handle("POST /admin/applicants/{id}/decision", mid.RequireReviewer(http.HandlerFunc(h.HandleAdminDecide)))
	mux.Handle("POST /admin/applicants/{id}/consents/resend", mid.RequireReviewer(http.HandlerFunc(h.HandleAdminResendConsent)))

	return &testServer{
		handler:  mid.RecoverPanic(mid.Authenticate(mux)),
		db:       db,
		notifier: notifier,
		uploader: uploader,
	}
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type call struct {
	method string
	path   string
	body   any
	header map[string]string
}

func (s *testServer) do(t *testing.T, c call) (int, envelope) {
	t.Helper()

	var body io.Reader = http.NoBody
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	r := httptest.NewRequest(c.method, c.path, body)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range c.header {
		r.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, r)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func (s *testServer) start(t *testing.T) string {
	t.Helper()

	code, env := s.do(t, call{method: "POST", path: "/applicants", body: map[string]string{
		"email":         "ada@acme.ng",
		"phone":         "+2348012345678",
		"business_type": "registered",
		"business_name": "Acme",
	}})
	require.Equal(t, http.StatusCreated, code, env.Message)

	data := decode[map[string]string](t, env.Data)
	require.NotEmpty(t, data["applicant_id"])
	return data["applicant_id"]
}

func (s *testServer) submit(t *testing.T, id string, kind models.StepKind, payload onboarding.StepPayload, key string) (int, envelope) {
	t.Helper()

	return s.do(t, call{
		method: "POST",
		path:   "/applicants/" + id + "/steps/" + string(kind),
		body:   payload,
		header: map[string]string{"Idempotency-Key": key},
	})
}

func (s *testServer) verifyContact(t *testing.T, id string) {
	t.Helper()

	code, env := s.do(t, call{method: "POST", path: "/applicants/" + id + "/otp"})
	require.Equal(t, http.StatusOK, code, env.Message)

	for _, channel := range []models.OTPChannel{models.OTPChannelEmail, models.OTPChannelPhone} {
		code, env := s.submit(t, id, models.StepContactVerification,
			onboarding.StepPayload{Channel: channel, Code: s.notifier.code(channel)}, "contact-"+string(channel))
		require.Equal(t, http.StatusOK, code, env.Message)
	}
}

// toConsent drives a registered applicant through identity; the consent request
// goes to the applicant's own email only.
func (s *testServer) toConsent(t *testing.T) string {
	t.Helper()

	id := s.start(t)
	s.verifyContact(t, id)

	code, env := s.submit(t, id, models.StepBusinessRegistryLookup, onboarding.StepPayload{RegistryNumber: "RC123456"}, "registry-1")
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.submit(t, id, models.StepDirectorIdentityVerification,
		onboarding.StepPayload{IdentityNumber: "10987654321", SelfieURL: "https://cdn.test/selfie.jpg"}, "director-1")
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.submit(t, id, models.StepDirectorConsent, onboarding.StepPayload{}, "consent-1")
	require.Equal(t, http.StatusOK, code, env.Message)

	return id
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	code, env := s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{
		"email":    testReviewerEmail,
		"password": testReviewerPassword,
	}})
	require.Equal(t, http.StatusOK, code, env.Message)

	return decode[map[string]string](t, env.Data)["auth_token"]
}
