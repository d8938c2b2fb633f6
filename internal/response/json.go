package response

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// Response is the envelope every endpoint answers with. Exactly one of Data and
// Error is set.
type Response[T any] struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	Error   T      `json:"error,omitempty"`
}

var camelBoundary = regexp.MustCompile("([a-z0-9])([A-Z])")

func JSONCreatedResponse(w http.ResponseWriter, data any, message string) error {
	return success(w, http.StatusCreated, data, message, nil)
}

func JSONOkResponse(w http.ResponseWriter, data any, message string, headers http.Header) error {
	return success(w, http.StatusOK, data, message, headers)
}

func success(w http.ResponseWriter, status int, data any, message string, headers http.Header) error {
	if message == "" {
		message = "Request successful"
	}

	return JSONWithHeaders(w, &Response[any]{
		Status:  status,
		Success: true,
		Message: message,
		Data:    snakeCaseKeys(data),
	}, headers)
}

func JSONErrorResponse(w http.ResponseWriter, err any, message string, status int, headers http.Header) error {
	if message == "" {
		message = "Request failed"
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return JSONWithHeaders(w, &Response[any]{
		Status:  status,
		Success: false,
		Message: message,
		Error:   snakeCaseKeys(err),
	}, headers)
}

func JSONWithHeaders[T any](w http.ResponseWriter, response *Response[T], headers http.Header) error {
	js, err := json.MarshalIndent(response, "", "\t")
	if err != nil {
		return err
	}

	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Status)

	_, err = w.Write(js)
	return err
}

func toSnakeCase(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "${1}_${2}"))
}

// snakeCaseKeys rewrites the keys of ad hoc maps so handlers can build payloads
// with Go-style names. Structs are left to their json tags.
func snakeCaseKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return ConvertKeysToSnakeCase(v)
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, item := range v {
			out[i] = ConvertKeysToSnakeCase(item)
		}
		return out
	default:
		return value
	}
}

func ConvertKeysToSnakeCase(data map[string]any) map[string]any {
	snakeData := make(map[string]any, len(data))

	for key, value := range data {
		snakeData[toSnakeCase(key)] = snakeCaseKeys(value)
	}
	return snakeData
}
