package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec
	TokenRefreshes   *prometheus.CounterVec
	ForcedLogouts    prometheus.Counter
}

// New creates and registers all gateway metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "novel_gateway_upstream_requests_total",
			Help: "Total number of requests forwarded to the novels backend",
		}, []string{"method", "status"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "novel_gateway_token_refreshes_total",
			Help: "Total number of token refresh episodes by outcome",
		}, []string{"outcome"}),
		ForcedLogouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "novel_gateway_forced_logouts_total",
			Help: "Total number of sessions cleared after an unrecoverable refresh failure",
		}),
	}
}

func (m *Metrics) ObserveUpstream(method string, status int) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RefreshSucceeded() {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues("ok").Inc()
}

func (m *Metrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues("failed").Inc()
}

func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}
