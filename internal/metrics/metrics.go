// Package metrics собирает метрики терминала в отдельный реестр Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry — метрики терминала.
type Registry struct {
	reg *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	CartMutations   *prometheus.CounterVec
	SalesFinalized  prometheus.Counter
	SalesCancelled  prometheus.Counter
	SaleTotal       prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewRegistry создаёт и регистрирует метрики.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	backendRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kassa_backend_requests_total",
		Help: "Backend API requests by operation and status code",
	}, []string{"op", "status"})
	backendLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kassa_backend_request_duration_seconds",
		Help:    "Backend API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kassa_cart_mutations_total",
		Help: "Successful cart mutations by kind",
	}, []string{"kind"})
	salesFinalized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kassa_sales_finalized_total",
		Help: "Sales closed with payment",
	})
	salesCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kassa_sales_cancelled_total",
		Help: "Sales cancelled by the cashier",
	})
	saleTotal := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kassa_sale_total_uzs",
		Help:    "Totals of finalized sales in UZS",
		Buckets: prometheus.ExponentialBuckets(10_000, 4, 8),
	})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kassa_http_requests_total",
		Help: "Terminal API requests",
	}, []string{"method", "path", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kassa_http_request_duration_seconds",
		Help:    "Terminal API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	r.MustRegister(backendRequests, backendLatency, cartMutations, salesFinalized, salesCancelled, saleTotal, httpRequests, httpDuration)
	return &Registry{
		reg:             r,
		BackendRequests: backendRequests,
		BackendLatency:  backendLatency,
		CartMutations:   cartMutations,
		SalesFinalized:  salesFinalized,
		SalesCancelled:  salesCancelled,
		SaleTotal:       saleTotal,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
	}
}

// ObserveRequest учитывает запрос к бэкенду. Код 0 — запрос не дошёл до сервера.
func (r *Registry) ObserveRequest(op string, statusCode int, elapsed time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	r.BackendRequests.WithLabelValues(op, status).Inc()
	r.BackendLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveCartMutation учитывает изменение корзины.
func (r *Registry) ObserveCartMutation(kind string) {
	r.CartMutations.WithLabelValues(kind).Inc()
}

// ObserveSale учитывает закрытую продажу.
func (r *Registry) ObserveSale(total float64) {
	r.SalesFinalized.Inc()
	r.SaleTotal.Observe(total)
}

// ObserveCancel учитывает отменённую продажу.
func (r *Registry) ObserveCancel() {
	r.SalesCancelled.Inc()
}

// ObserveHTTP учитывает запрос к API терминала.
func (r *Registry) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
