// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var busDropsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "focusd_bus_publish_drops_total",
		Help: "Bus publishes abandoned because the publish context ended.",
	},
	[]string{"topic", "reason"},
)

// IncBusDropReason counts an abandoned publish on a topic.
func IncBusDropReason(topic, reason string) {
	busDropsTotal.WithLabelValues(topic, reason).Inc()
}
