package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetailsMarshalJSON(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"fact 42 not found",
		"/api/facts/42",
	).WithExtension("trace_id", "abc-123").
		WithExtension("error_code", "NOT_FOUND")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, TypeNotFound, decoded["type"])
	assert.Equal(t, "Not Found", decoded["title"])
	assert.Equal(t, float64(http.StatusNotFound), decoded["status"])
	assert.Equal(t, "fact 42 not found", decoded["detail"])
	assert.Equal(t, "/api/facts/42", decoded["instance"])
	assert.Equal(t, "abc-123", decoded["trace_id"])
	assert.Equal(t, "NOT_FOUND", decoded["error_code"])
}

func TestProblemDetailsOmitsEmptyFields(t *testing.T) {
	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", "", "")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	_, hasDetail := decoded["detail"]
	assert.False(t, hasDetail)
	_, hasInstance := decoded["instance"]
	assert.False(t, hasInstance)
}

func TestProblemDetailsRender(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/facts", nil)

	problem := NewProblemDetails(
		http.StatusServiceUnavailable,
		TypeServiceDown,
		"Service Unavailable",
		"the datastore is busy",
		"/api/facts",
	).WithExtension("retry_after", 5)

	require.NoError(t, render.Render(w, r, problem))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, float64(5), decoded["retry_after"])
}
