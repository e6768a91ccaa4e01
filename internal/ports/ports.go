// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"time"

	"github.com/openprocure/evalmatrix/internal/domain"
)

// RubricSpec is the caller-supplied definition used to create a rubric.
// It mirrors domain.Rubric minus engine-owned fields (version, status,
// timestamps), which the store assigns.
type RubricSpec struct {
	// ID is the stable rubric identifier. When empty the store assigns one.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Name is the human-readable rubric title.
	Name string `json:"name" yaml:"name" validate:"required,min=1,max=255"`

	// Criteria is the ordered list of top-level scoring dimensions.
	Criteria []domain.Criterion `json:"criteria" yaml:"criteria" validate:"required,min=1,dive"`

	// PassingThreshold is the Consider floor on the 0-100 weighted scale.
	PassingThreshold float64 `json:"passing_threshold" yaml:"passing_threshold" validate:"min=0,max=100"`

	// PrimaryCriterion optionally names the first tie-break criterion.
	PrimaryCriterion string `json:"primary_criterion,omitempty" yaml:"primary_criterion,omitempty"`
}

// RubricStore manages versioned scoring rubrics through their lifecycle.
// Implementations must apply copy-on-change semantics: editing a rubric
// that any matrix has bound produces a new version rather than mutating
// the bound one.
type RubricStore interface {
	// Create validates the spec and stores a new Draft rubric.
	// Negative weights and mandatory criteria without a passing score are
	// rejected with a domain.ValidationError.
	Create(ctx context.Context, spec RubricSpec) (domain.Rubric, error)

	// Get returns the current version of the rubric.
	Get(ctx context.Context, id string) (domain.Rubric, error)

	// Update applies a structural edit. Draft rubrics are edited in
	// place; bound rubrics are copied into a new Draft version.
	Update(ctx context.Context, id string, spec RubricSpec) (domain.Rubric, error)

	// Activate transitions Draft -> Active after verifying the weight-sum
	// invariant, failing with a domain.ValidationError when sibling
	// weights do not sum to exactly 100.
	Activate(ctx context.Context, id string) (domain.Rubric, error)

	// Archive retires the rubric. Existing bindings keep their snapshot;
	// new Bind calls fail.
	Archive(ctx context.Context, id string) (domain.Rubric, error)

	// Bind returns an immutable value-copy of an Active rubric for use by
	// an evaluation matrix, and freezes the stored rubric against further
	// in-place structural edits.
	Bind(ctx context.Context, id string) (domain.RubricSnapshot, error)
}

// EventSink receives notifications emitted by evaluation matrices.
// Implementations deliver them to message brokers, dashboards, or test
// recorders; the engine never blocks on delivery semantics beyond the
// synchronous Publish call.
type EventSink interface {
	// Publish delivers one event. Errors are the sink's concern; the
	// engine treats publication as fire-and-forget data emission.
	Publish(ctx context.Context, event domain.Event)
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations should integrate with observability platforms
// like Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like accepted or rejected
	// submissions.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like vendor scores or consensus
	// state.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like recompute latency.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// MatrixObserver receives lifecycle callbacks around matrix operations
// for tracing and monitoring. Observers must be non-blocking and must
// never fail the observed operation.
type MatrixObserver interface {
	// SubmissionObserved is called after every submission attempt,
	// accepted or rejected, with the outcome error (nil on success).
	SubmissionObserved(ctx context.Context, matrixID string, key domain.ScoreKey, elapsed time.Duration, err error)

	// RecomputeObserved is called after every results recomputation.
	RecomputeObserved(ctx context.Context, matrixID string, results domain.MatrixResults, elapsed time.Duration)

	// TransitionObserved is called after every state transition.
	TransitionObserved(ctx context.Context, matrixID string, from, to domain.MatrixStatus)
}
