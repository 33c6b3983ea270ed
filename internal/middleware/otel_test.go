package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/JdHeer/kbc-p3dh/internal/infrastructure"
	"github.com/JdHeer/kbc-p3dh/internal/shared/testutil"
)

// newTestOTelMiddleware builds the middleware on noop providers, the
// same shape InitializeOTel produces when both exporters are disabled.
func newTestOTelMiddleware(t *testing.T) (*OTelMiddleware, *testutil.BufferedSlogHandler) {
	t.Helper()

	logger, logHandler := testutil.NewTestLogger(t)
	providers := &infrastructure.OTelProviders{
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
		Logger: logger,
	}

	m, err := NewOTelMiddleware(providers)
	require.NoError(t, err)
	return m, logHandler
}

func TestOTelMiddlewareHandler(t *testing.T) {
	m, logHandler := newTestOTelMiddleware(t)

	var gotTrace string
	handler := RequestID(m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = infrastructure.GetTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("teapot"))
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/facts", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "teapot", w.Body.String())

	// A noop span has no valid span context, so the request ID set by
	// the RequestID middleware must survive as the trace ID.
	require.NotEmpty(t, gotTrace)
	assert.Equal(t, w.Header().Get("X-Request-ID"), gotTrace)

	assert.True(t, logHandler.ContainsMessage("HTTP request completed"))
	assert.True(t, logHandler.ContainsAttr("status_code", int64(http.StatusTeapot)))
	assert.True(t, logHandler.ContainsAttr("bytes_written", int64(len("teapot"))))
}

func TestOTelMiddlewareRoutePattern(t *testing.T) {
	m, logHandler := newTestOTelMiddleware(t)

	router := chi.NewRouter()
	router.Use(m.Handler)
	router.Get("/api/facts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/facts/42", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, logHandler.ContainsAttr("route", "/api/facts/{id}"),
		"metrics and logs should carry the route pattern, not the raw path")
}

func TestGetRoutePatternFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/facts/42", nil)
	assert.Equal(t, "/api/facts/42", getRoutePattern(r))
}

func TestResponseWriterCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, statusCode: 200}

	ww.WriteHeader(http.StatusNotFound)
	n, err := ww.Write([]byte("nope"))

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusNotFound, ww.statusCode)
	assert.Equal(t, int64(4), ww.bytesWritten)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
