package usecase

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phenrril/printstock/internal/domain"
)

var (
	intakeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printstock_intake_outcomes_total",
		Help: "Stock intakes by source and outcome.",
	}, []string{"source", "outcome"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printstock_import_rows_total",
		Help: "Bulk import rows by outcome.",
	}, []string{"outcome"})

	commitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printstock_commit_failures_total",
		Help: "Intake commits interrupted, by the state they stopped at.",
	}, []string{"state"})
)

func observeOutcome(src domain.IntakeSource, outcome string) {
	intakeOutcomes.WithLabelValues(string(src), outcome).Inc()
}

func observeIntake(src domain.IntakeSource, res *ReconciliationResult, err error) {
	var (
		dup *domain.DuplicateError
		ve  *domain.ValidationError
	)
	switch {
	case errors.As(err, &dup):
		observeOutcome(src, "duplicate")
	case errors.As(err, &ve):
		observeOutcome(src, "invalid")
	case err != nil:
		observeOutcome(src, "failed")
	case res != nil && res.Created:
		observeOutcome(src, "created")
	default:
		observeOutcome(src, "merged")
	}
}
