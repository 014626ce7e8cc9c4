package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignUps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepwise", Name: "auth_signups_total", Help: "Number of sign-up attempts by result."},
		[]string{"result"},
	)
	SignIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepwise", Name: "auth_signins_total", Help: "Number of sign-in attempts by result."},
		[]string{"result"},
	)
	FederatedAuths = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepwise", Name: "auth_federated_total", Help: "Number of federated auth attempts by result."},
		[]string{"result"},
	)
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepwise", Name: "auth_token_refresh_total", Help: "Number of refresh-token exchanges by result."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepwise", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "prepwise", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SignUps, SignIns, FederatedAuths, TokenRefreshes, RateLimitAllowed, RateLimitRejected)
}
