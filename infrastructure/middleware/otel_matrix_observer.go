package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/ports"
)

// instrumentationName identifies this package in exported telemetry.
const instrumentationName = "github.com/openprocure/evalmatrix/infrastructure/middleware"

// OtelMatrixObserver implements the MatrixObserver interface using
// OpenTelemetry. It emits a span per submission and recomputation, and
// span events for lifecycle transitions, so matrix activity can be
// correlated with surrounding request traces.
type OtelMatrixObserver struct {
	tracer trace.Tracer
}

// NewOtelMatrixObserver creates an observer backed by the given tracer
// provider. Passing nil uses the global provider.
func NewOtelMatrixObserver(tp trace.TracerProvider) *OtelMatrixObserver {
	if tp == nil {
		return &OtelMatrixObserver{tracer: otel.Tracer(instrumentationName)}
	}
	return &OtelMatrixObserver{tracer: tp.Tracer(instrumentationName)}
}

// SubmissionObserved implements the MatrixObserver interface by creating
// a span for each submission attempt. Rejected submissions are recorded
// with error status so they stand out in trace views.
func (o *OtelMatrixObserver) SubmissionObserved(
	ctx context.Context,
	matrixID string,
	key domain.ScoreKey,
	elapsed time.Duration,
	err error,
) {
	_, span := o.tracer.Start(ctx, "matrix.submit",
		trace.WithAttributes(
			attribute.String("matrix.id", matrixID),
			attribute.String("vendor.id", key.VendorID),
			attribute.String("evaluator.id", key.EvaluatorID),
			attribute.Float64("submit.elapsed_ms", float64(elapsed.Milliseconds())),
		),
	)
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecomputeObserved implements the MatrixObserver interface by creating
// a span carrying the headline figures of the fresh results snapshot.
func (o *OtelMatrixObserver) RecomputeObserved(
	ctx context.Context,
	matrixID string,
	results domain.MatrixResults,
	elapsed time.Duration,
) {
	_, span := o.tracer.Start(ctx, "matrix.recompute",
		trace.WithAttributes(
			attribute.String("matrix.id", matrixID),
			attribute.Int("results.vendors", len(results.Rankings)),
			attribute.Int("results.evaluated", results.TotalEvaluated),
			attribute.Float64("results.average_score", results.AverageScore),
			attribute.Float64("results.score_variance", results.ScoreVariance),
			attribute.Bool("results.consensus_reached", results.ConsensusReached),
			attribute.Float64("recompute.elapsed_ms", float64(elapsed.Milliseconds())),
		),
	)
	defer span.End()

	if !results.ConsensusReached {
		span.AddEvent("consensus_not_reached", trace.WithAttributes(
			attribute.Float64("score_variance", results.ScoreVariance),
		))
	}
	span.SetStatus(codes.Ok, "")
}

// TransitionObserved implements the MatrixObserver interface by creating
// a span for each lifecycle transition.
func (o *OtelMatrixObserver) TransitionObserved(
	ctx context.Context,
	matrixID string,
	from, to domain.MatrixStatus,
) {
	_, span := o.tracer.Start(ctx, "matrix.transition",
		trace.WithAttributes(
			attribute.String("matrix.id", matrixID),
			attribute.String("transition.from", string(from)),
			attribute.String("transition.to", string(to)),
		),
	)
	defer span.End()
	span.SetStatus(codes.Ok, "")
}

// Compile-time verification that OtelMatrixObserver implements MatrixObserver.
var _ ports.MatrixObserver = (*OtelMatrixObserver)(nil)
