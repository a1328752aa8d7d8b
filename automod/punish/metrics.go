package punish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var punishmentsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_punishments_scheduled",
	Help: "Number of punishments persisted as active",
}, []string{"kind"})

var punishmentsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_punishments_expired",
	Help: "Number of punishment expiries fired (transition winners only)",
}, []string{"kind"})

var punishmentsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_punishments_cancelled",
	Help: "Number of punishments cancelled before expiry",
})

var punishmentsReversed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_punishments_reversed",
	Help: "Number of punishments reversed by manual command",
})

var reversalRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_punishment_reversal_retries",
	Help: "Number of reversal attempts re-queued after unacknowledged platform calls",
})
