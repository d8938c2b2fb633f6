package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cradoe/skypay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	cfg := config.Load()
	cfg.Seed.ReviewerPassword = "Sky!Pay2024#Review"

	app, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return app
}

func TestNewUsesInProcessBackends(t *testing.T) {
	app := newTestApplication(t)

	assert.Nil(t, app.Cache)
	assert.Nil(t, app.Kafka)
	assert.NotNil(t, app.Orchestrator)

	banks, err := app.DB.Bank().GetAll(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, banks)

	_, found, err := app.DB.Reviewer().GetByEmail(context.Background(), app.Config.Seed.ReviewerEmail)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRoutes(t *testing.T) {
	app := newTestApplication(t)
	routes := app.routes()

	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest("GET", "/status", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	body := `{"email":"ada@acme.ng","phone":"+2348012345678","business_type":"unregistered","business_name":"Ada Stores"}`
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest("POST", "/applicants", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest("GET", "/applicants/"+created.Data["applicant_id"], nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest("GET", "/admin/applicants", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
