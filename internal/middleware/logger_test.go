package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/session/start", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/session/start", fields["path"])
	assert.Equal(t, int64(http.StatusConflict), fields["status"])
}

type recordedRequest struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	requests []recordedRequest
}

func (o *recordingObserver) ObserveHTTP(method, path string, status int, _ time.Duration) {
	o.requests = append(o.requests, recordedRequest{method: method, path: path, status: status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Delete("/api/session/lines/{lineID}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/session/lines/17", nil))

	require.Len(t, obs.requests, 1)
	assert.Equal(t, recordedRequest{method: "DELETE", path: "/api/session/lines/{lineID}", status: http.StatusOK}, obs.requests[0])
}
