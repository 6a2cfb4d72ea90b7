package httpmiddleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides the OpenTelemetry providers of the process.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Instrument traces and meters every request with otelhttp. Spans start
// named after the method and are renamed by Route once a pattern matches.
func Instrument(service string, m Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "HTTP " + r.Method
			}),
		)
	}
}

type routeKey struct{}

type routeInfo struct {
	pattern string
}

func withRouteInfo(ctx context.Context) (context.Context, *routeInfo) {
	if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
		return ctx, info
	}
	info := &routeInfo{}
	return context.WithValue(ctx, routeKey{}, info), info
}

// RouteFromContext returns the pattern recorded by Route, or "".
func RouteFromContext(ctx context.Context) string {
	if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
		return info.pattern
	}
	return ""
}

// Route tags requests served by h with pattern. It renames the server span,
// labels otelhttp metrics with http.route and exposes the pattern to
// LogRequests.
func Route(pattern string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
			info.pattern = pattern
		}
		trace.SpanFromContext(ctx).SetName(pattern)
		if labeler, ok := otelhttp.LabelerFromContext(ctx); ok {
			labeler.Add(attribute.String("http.route", pattern))
		}
		h.ServeHTTP(w, r)
	})
}
