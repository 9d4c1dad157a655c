package tracing

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

type Config struct {
	Enabled     bool
	ServiceName string

	OTLPEndpoint string
	OTLPInsecure bool

	SampleRatio float64
}

// Setup installs a global OTLP tracer provider and returns its shutdown
// function. Exporter failures log a warning and leave tracing disabled rather
// than failing startup.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled {
		// Keep the propagator consistent even without an exporter so any
		// separately instrumented component reads the same headers.
		otel.SetTextMapPropagator(defaultPropagator())
		return func(context.Context) error { return nil }, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))
	}
	if serviceName == "" {
		serviceName = "geoscope"
	}

	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	endpoint = sanitizeEndpoint(endpoint)

	insecure := cfg.OTLPInsecure
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		insecure = parseBool(v)
	}

	sampleRatio := cfg.SampleRatio
	if sampleRatio <= 0 || sampleRatio > 1 {
		sampleRatio = 1
	}

	expOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
	}
	if insecure {
		expOpts = append(expOpts, otlptracegrpc.WithInsecure())
	} else {
		expOpts = append(expOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := otlptracegrpc.New(ctx, expOpts...)
	if err != nil {
		logger.Warn("otel exporter init failed; tracing disabled", "err", err)
		otel.SetTextMapPropagator(defaultPropagator())
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		logger.Warn("otel resource init failed; using default", "err", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(defaultPropagator())

	return tp.Shutdown, nil
}

func defaultPropagator() propagation.TextMapPropagator {
	return propagation.TraceContext{}
}

// outboundPropagator carries only TraceContext. Baggage is excluded so that
// nothing attached to the request context leaks to third-party webhook
// endpoints.
func outboundPropagator() propagation.TextMapPropagator {
	return propagation.TraceContext{}
}

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	// OTEL_EXPORTER_OTLP_ENDPOINT is often configured as a URL. The gRPC
	// exporter expects host:port.
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSuffix(raw, "/")
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}

// InjectHeaders injects W3C traceparent and tracestate headers into h for
// outbound webhook deliveries.
func InjectHeaders(ctx context.Context, h http.Header) {
	if h == nil {
		return
	}
	outboundPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}
