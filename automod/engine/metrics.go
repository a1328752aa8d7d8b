package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "tempest_event_duration_sec",
	Help: "Total duration of event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var eventSkippedImmuneCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_event_skipped_immune",
	Help: "Number of events skipped because the actor is at or above the immunity level",
})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_violations",
	Help: "Number of detector violations recorded",
}, []string{"detector"})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_decisions",
	Help: "Number of punishment decisions issued",
}, []string{"action", "source"})

var detectorConfigErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_detector_config_errors",
	Help: "Number of evaluations where a detector was skipped for invalid config",
})

var commandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_commands_processed",
	Help: "Number of manual commands processed",
}, []string{"kind"})

var permissionDeniedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_commands_permission_denied",
	Help: "Number of manual commands rejected for insufficient permission level",
})
