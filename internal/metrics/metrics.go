// Package metrics exposes the engine's Prometheus counters; the API binary
// serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignmentsCreated counts persisted substitution assignments by type.
	AssignmentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendro_assignments_created_total",
		Help: "Substitution assignments persisted, by assignment type.",
	}, []string{"type"})

	// SlotsUncovered counts slots left without a substitute by a resolution run.
	SlotsUncovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendro_slots_uncovered_total",
		Help: "Leave-affected slots left uncovered after resolution.",
	})

	// SessionsCaptured counts attendance sessions created.
	SessionsCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendro_sessions_captured_total",
		Help: "Attendance sessions created.",
	})

	// DuplicateSubmissions counts submissions rejected by the identity-key
	// constraint.
	DuplicateSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendro_duplicate_submissions_total",
		Help: "Attendance submissions rejected as duplicates.",
	})
)
