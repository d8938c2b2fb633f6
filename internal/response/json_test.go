package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOkResponse(t *testing.T) {
	rr := httptest.NewRecorder()

	headers := http.Header{"Retry-After": []string{"5"}}
	err := JSONOkResponse(rr, map[string]any{
		"ApplicantID": "a1",
		"NextStep":    map[string]any{"StepKind": "contact"},
		"Directors":   []map[string]any{{"FullName": "Ada Obi"}},
	}, "", headers)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Request successful", body["message"])
	assert.NotContains(t, body, "error")

	data := body["data"].(map[string]any)
	assert.Equal(t, "a1", data["applicant_id"])
	assert.Equal(t, "contact", data["next_step"].(map[string]any)["step_kind"])
	assert.Equal(t, "Ada Obi", data["directors"].([]any)[0].(map[string]any)["full_name"])
}

func TestJSONCreatedResponseKeepsStructTags(t *testing.T) {
	rr := httptest.NewRecorder()

	type created struct {
		SelfieURL string `json:"selfieUrl"`
	}
	require.NoError(t, JSONCreatedResponse(rr, created{SelfieURL: "https://img"}, "Uploaded"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"status":201,"success":true,"message":"Uploaded","data":{"selfieUrl":"https://img"}}`, rr.Body.String())
}

func TestJSONErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()

	require.NoError(t, JSONErrorResponse(rr, map[string]string{"email": "must be a valid email address"}, "", 0, nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"status":500,"success":false,"message":"Request failed","error":{"email":"must be a valid email address"}}`, rr.Body.String())
}
