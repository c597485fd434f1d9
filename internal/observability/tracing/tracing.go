// Package tracing provides OpenTelemetry spans for the pipeline stages.
//
// Each stage of a corpus run (load, normalize, dedupe, enrich, write,
// store) is wrapped in its own span carrying the run id, the stage name,
// and the processed record count, so a run can be followed across stages
// in any OTLP-compatible backend. Without a registered tracer provider
// the spans are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EndFunc closes a stage span, recording the processed record count and
// the stage error.
type EndFunc func(records int, err error)

// StartStage opens a span for one pipeline stage. Stages of the same run
// are siblings under the caller's context, correlated by the run.id
// attribute.
//
// Example usage:
//
//	loadCtx, endLoad := tracing.StartStage(ctx, runID, "load")
//	batches, err := loader.LoadBatches(loadCtx, dir)
//	endLoad(len(batches), err)
func StartStage(ctx context.Context, runID, stage string) (context.Context, EndFunc) {
	ctx, span := otel.Tracer("corpusmill").Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("pipeline.stage", stage),
		),
	)

	return ctx, func(records int, err error) {
		span.SetAttributes(attribute.Int("pipeline.records", records))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
