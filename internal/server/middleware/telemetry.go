package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "nettoria/backend/internal/server/middleware"

// Telemetry starts a server span per request and records request count and duration.
// Providers default to the globals when nil.
func Telemetry(tp trace.TracerProvider, mp metric.MeterProvider) fiber.Handler {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tracer := tp.Tracer(instrumentationName)
	meter := mp.Meter(instrumentationName)
	requests, _ := meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests handled"))
	duration, _ := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("ms"))
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		carrier := propagation.HeaderCarrier(http.Header(c.GetReqHeaders()))
		ctx := propagator.Extract(c.UserContext(), carrier)
		ctx, span := tracer.Start(ctx, "HTTP "+c.Method(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		span.SetName(c.Method() + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", c.Method()),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		}
		span.SetAttributes(attrs...)
		if err != nil || status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(attrs...))
		return err
	}
}
