package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest("create order", 201, 10*time.Millisecond)
	r.ObserveRequest("create order", 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.BackendRequests.WithLabelValues("create order", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.BackendRequests.WithLabelValues("create order", "error")))
}

func TestObserveSaleAndCart(t *testing.T) {
	r := NewRegistry()
	r.ObserveCartMutation("add")
	r.ObserveCartMutation("add")
	r.ObserveSale(24000)
	r.ObserveCancel()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.CartMutations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SalesFinalized))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SalesCancelled))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveHTTP("GET", "/api/session", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kassa_http_requests_total{method="GET",path="/api/session",status="200"} 1`)
}
