package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAuthLogin(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"Valid credentials", testReviewerEmail, testReviewerPassword, http.StatusOK},
		{"Email is case insensitive", "Reviewer@SkyPay.test", testReviewerPassword, http.StatusOK},
		{"Wrong password", testReviewerEmail, "Wrong!Pass2024", http.StatusUnprocessableEntity},
		{"Unknown reviewer", "nobody@skypay.test", testReviewerPassword, http.StatusUnprocessableEntity},
		{"Missing password", testReviewerEmail, "", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			code, env := s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{
				"email":    tt.email,
				"password": tt.password,
			}})
			require.Equal(t, tt.status, code, env.Message)

			if tt.status == http.StatusOK {
				data := decode[map[string]string](t, env.Data)
				assert.NotEmpty(t, data["auth_token"])
				assert.NotEmpty(t, data["token_expiry"])
			}
		})
	}
}

func TestAdminRoutesRequireReviewer(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, call{method: "GET", path: "/admin/applicants"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, call{method: "GET", path: "/admin/applicants", header: map[string]string{"Authorization": "Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, code)
}
