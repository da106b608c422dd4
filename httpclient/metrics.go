package httpclient

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpsig "github.com/leelynne/gbusiness-httpsig"
)

// Metrics holds the Prometheus collectors updated by WithMetrics.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the client collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). Collectors already registered under
// the same names are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gbusiness_client_requests_total",
			Help: "Outgoing provider requests by method and result.",
		}, []string{"method", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gbusiness_client_request_duration_seconds",
			Help:    "Latency of outgoing provider requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	var err error
	if m.requests, err = registerCollector(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = registerCollector(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// WithMetrics counts requests and observes their latency. The result label is the
// response status code, or the error code when no response was received.
func WithMetrics(m *Metrics) Decorator {
	return func(next Client) Client {
		if m == nil {
			return next
		}
		return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Do(ctx, req)
			m.duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			result := ""
			if err != nil {
				result = string(httpsig.CodeOf(err))
				if result == "" {
					result = "error"
				}
			} else {
				result = strconv.Itoa(resp.StatusCode)
			}
			m.requests.WithLabelValues(req.Method, result).Inc()
			return resp, err
		})
	}
}
