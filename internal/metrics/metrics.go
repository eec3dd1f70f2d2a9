package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeEmpty   = "empty_cart"
	OutcomeInvalid = "invalid"
)

// Shop records storefront request and business metrics.
type Shop struct {
	requestDuration *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	logins          *prometheus.CounterVec
	signups         *prometheus.CounterVec
}

// New registers the storefront metrics on reg. A nil registerer yields a
// recorder whose methods are no-ops.
func New(reg prometheus.Registerer) *Shop {
	if reg == nil {
		return &Shop{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	signups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_signups_total",
		Help: "Signup attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(requestDuration, checkouts, logins, signups)
	return &Shop{
		requestDuration: requestDuration,
		checkouts:       checkouts,
		logins:          logins,
		signups:         signups,
	}
}

func (s *Shop) ObserveRequest(method, route, status string, duration time.Duration) {
	if s == nil || s.requestDuration == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	s.requestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func (s *Shop) IncCheckout(outcome string) {
	if s == nil || s.checkouts == nil {
		return
	}
	s.checkouts.WithLabelValues(outcome).Inc()
}

func (s *Shop) IncLogin(outcome string) {
	if s == nil || s.logins == nil {
		return
	}
	s.logins.WithLabelValues(outcome).Inc()
}

func (s *Shop) IncSignup(outcome string) {
	if s == nil || s.signups == nil {
		return
	}
	s.signups.WithLabelValues(outcome).Inc()
}
