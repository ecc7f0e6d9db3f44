package scrub

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/dativo-io/notescrub/internal/scrub")

var (
	notesProcessed    metric.Int64Counter
	markersResolved   metric.Int64Counter
	markersRemoved    metric.Int64Counter
	markersUnresolved metric.Int64Counter
	normalizerRewrite metric.Int64Counter
)

func init() {
	var err error
	notesProcessed, err = meter.Int64Counter("scrub.notes.processed",
		metric.WithDescription("Notes run through the pipeline"))
	if err != nil {
		notesProcessed, _ = meter.Int64Counter("scrub.notes.processed.fallback")
	}

	markersResolved, err = meter.Int64Counter("scrub.markers.resolved",
		metric.WithDescription("Redaction markers replaced by a category token"))
	if err != nil {
		markersResolved, _ = meter.Int64Counter("scrub.markers.resolved.fallback")
	}

	markersRemoved, err = meter.Int64Counter("scrub.markers.removed",
		metric.WithDescription("Redaction markers without description that were dropped"))
	if err != nil {
		markersRemoved, _ = meter.Int64Counter("scrub.markers.removed.fallback")
	}

	markersUnresolved, err = meter.Int64Counter("scrub.markers.unresolved",
		metric.WithDescription("Redaction markers left verbatim after all passes"))
	if err != nil {
		markersUnresolved, _ = meter.Int64Counter("scrub.markers.unresolved.fallback")
	}

	normalizerRewrite, err = meter.Int64Counter("scrub.normalizer.rewrites",
		metric.WithDescription("Obvious-pattern rewrites by stage"))
	if err != nil {
		normalizerRewrite, _ = meter.Int64Counter("scrub.normalizer.rewrites.fallback")
	}
}

func recordResolved(ctx context.Context, category, token string) {
	markersResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("token", token),
	))
}

func recordNote(ctx context.Context, sum Summary) {
	notesProcessed.Add(ctx, 1)
	if sum.Removed > 0 {
		markersRemoved.Add(ctx, int64(sum.Removed))
	}
	if sum.Unresolved > 0 {
		markersUnresolved.Add(ctx, int64(sum.Unresolved))
	}
	for stage, n := range sum.Rewrites {
		normalizerRewrite.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", stage)))
	}
}
