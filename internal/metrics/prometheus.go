package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal     *prometheus.CounterVec
	LoginFailureTotal     *prometheus.CounterVec
	NonceReplayTotal      prometheus.Counter
	TrustCheckFailedTotal *prometheus.CounterVec
	SessionsIssuedTotal   prometheus.Counter
)

// InitCustomMetrics initializes and registers the auth metrics. Call once at
// startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ribbit_logins_success_total",
		Help: "Successful logins by path (wallet or discord).",
	}, []string{"path"})
	LoginFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ribbit_logins_failure_total",
		Help: "Failed logins by path.",
	}, []string{"path"})
	NonceReplayTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ribbit_nonce_replays_total",
		Help: "Sign-in attempts rejected because the nonce was reused or unknown.",
	})
	TrustCheckFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ribbit_trust_checks_failed_total",
		Help: "External trust checks that resolved to not-verified by source.",
	}, []string{"source"})
	SessionsIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ribbit_sessions_issued_total",
		Help: "Session tokens issued.",
	})

	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		LoginSuccessTotal, LoginFailureTotal, NonceReplayTotal,
		TrustCheckFailedTotal, SessionsIssuedTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}

func init() {
	// Metrics must be usable from unit tests without a registry.
	InitCustomMetrics(nil)
}
