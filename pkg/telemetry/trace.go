package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/EmOne/openremote"

// StartSpan starts a span on the package tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, "session.boot", attribute.String("realm", realm))
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Common attribute keys.
const (
	AttrRealm    = "openremote.realm"
	AttrAuthMode = "openremote.auth_mode"
	AttrStage    = "openremote.boot_stage"
)
