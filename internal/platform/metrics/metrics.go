package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deviceVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votemap_device_verifications_total",
		Help: "Device verification attempts by outcome",
	}, []string{"outcome"})

	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votemap_vote_requests_total",
		Help: "Cast-vote requests by outcome",
	}, []string{"status"})

	votesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "votemap_votes_committed_total",
		Help: "Votes durably committed to the ledger",
	})

	recomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "votemap_recompute_duration_seconds",
		Help:    "Time to rebuild one constituency aggregate",
		Buckets: prometheus.DefBuckets,
	})

	broadcastEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votemap_broadcast_events_total",
		Help: "Events handed to the broadcaster by type",
	}, []string{"type"})
)

func ObserveDeviceVerification(outcome string) {
	deviceVerificationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func IncVoteCommitted() {
	votesCommittedTotal.Inc()
}

func ObserveRecomputeDuration(seconds float64) {
	recomputeDuration.Observe(seconds)
}

func IncBroadcastEvent(eventType string) {
	broadcastEventsTotal.WithLabelValues(eventType).Inc()
}
