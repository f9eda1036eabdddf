package tiercache

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goforj/tiercache"

var (
	attrID      = attribute.Key("tiercache.id")
	attrHitTier = attribute.Key("tiercache.hit_tier")
	attrErrTier = attribute.Key("tiercache.error_tier")
)

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func spanHit(span trace.Span, tier Tier) {
	span.SetAttributes(attrHitTier.String(string(tier)))
}

func spanFail(span trace.Span, err *Error) {
	span.SetAttributes(attrErrTier.String(string(err.Tier)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
