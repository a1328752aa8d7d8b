package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var workItemsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_gateway_work_items_added_total",
	Help: "Total number of events added to the gateway scheduler",
}, []string{"pool"})

var workItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_gateway_work_items_processed_total",
	Help: "Total number of events processed by the gateway scheduler",
}, []string{"pool"})

var workersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "tempest_gateway_workers_active",
	Help: "Number of workers running in the gateway scheduler",
}, []string{"pool"})

var eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_gateway_events_received_total",
	Help: "Events received from the gateway socket, by kind",
}, []string{"kind"})

var eventsDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_gateway_decode_errors_total",
	Help: "Gateway frames that could not be decoded",
})
