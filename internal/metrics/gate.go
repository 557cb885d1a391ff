// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateHeld is 1 while a job holds the admission gate.
	GateHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobgate_gate_held",
		Help: "Whether the admission gate is currently held (0 or 1).",
	})

	// GateRejectionsTotal counts acquisitions refused because the gate was held.
	GateRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobgate_gate_rejections_total",
		Help: "Total number of admission attempts rejected while the gate was held.",
	})

	// GateRecoveriesTotal counts leases found at startup, by outcome (adopted/stale).
	GateRecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobgate_gate_recoveries_total",
		Help: "Total number of gate leases found at startup, by outcome.",
	}, []string{"outcome"})
)

// SetGateHeld updates the gate gauge.
func SetGateHeld(held bool) {
	if held {
		GateHeld.Set(1)
		return
	}
	GateHeld.Set(0)
}

// RecordGateRejection increments the rejection counter.
func RecordGateRejection() {
	GateRejectionsTotal.Inc()
}

// RecordGateRecovery increments the recovery counter.
func RecordGateRecovery(outcome string) {
	GateRecoveriesTotal.WithLabelValues(outcome).Inc()
}

// GetGateHeld returns the current gauge value (for testing).
func GetGateHeld() float64 {
	return gaugeValue(GateHeld)
}

// GetGateRejections returns the current counter value (for testing).
func GetGateRejections() float64 {
	return counterValue(GateRejectionsTotal)
}
