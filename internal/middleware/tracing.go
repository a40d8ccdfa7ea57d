package middleware

import (
	"fmt"
	"strconv"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request. The span is named after
// the matched route template once routing is done, so /api/challenges/7 and
// /api/challenges/8 share "GET /api/challenges/:id".
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if requestID, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", requestID))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		if id := c.Params("id"); id != "" {
			span.SetAttributes(attribute.String("ctf.target.id", id))
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.String("user.id", strconv.FormatUint(uint64(uid), 10)))
		}

		status := c.Response().StatusCode()
		if err != nil {
			// fiber's error handler has not run yet
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if code, ok := c.Locals(models.ErrorCodeLocal).(string); ok {
			span.SetAttributes(attribute.String("ctf.error.code", code))
		}
		// 4xx is the client's fault; only server failures mark the span.
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}

		return err
	}
}
