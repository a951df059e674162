// Package server - Prometheus-Metriken
//
// Zaehler fuer Task-Durchsatz und Gauges fuer den Accelerator-Zustand.
// Export ueber GET /metrics.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gpugate",
		Name:      "tasks_started_total",
		Help:      "Gestartete Tasks nach Typ.",
	}, []string{"type"})

	taskFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gpugate",
		Name:      "tasks_finished_total",
		Help:      "Abgeschlossene Tasks nach Typ und Ausgang.",
	}, []string{"type", "status"})

	modelLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gpugate",
		Name:      "model_loads_total",
		Help:      "Model-Ladevorgaenge nach Ausgang.",
	}, []string{"status"})

	gpuMemoryUsedMB = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gpugate",
		Name:      "gpu_memory_used_mb",
		Help:      "Belegter Accelerator-Speicher in MB, zuletzt abgetastet.",
	})

	residentModels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gpugate",
		Name:      "resident_models",
		Help:      "Anzahl aktuell residenter Models.",
	})
)
