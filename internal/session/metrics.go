// SPDX-License-Identifier: MIT

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livecap",
		Name:      "sessions_active",
		Help:      "Currently registered sessions",
	}, []string{"device"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livecap",
		Name:      "sessions_total",
		Help:      "Total session creations",
	}, []string{"device", "result"})

	workerExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livecap",
		Name:      "worker_exits_total",
		Help:      "Worker process exits",
	}, []string{"reason"})

	pumpLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecap",
		Name:      "pump_lines_total",
		Help:      "Worker stdout lines routed by the pump",
	})
)
