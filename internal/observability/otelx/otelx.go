// Package otelx wires optional OpenTelemetry tracing for the monitor loop.
// Tracing is off unless TWEETWATCH_OTEL_ENABLED is set; endpoint and
// protocol come from the usual OTEL_EXPORTER_OTLP_* variables.
package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

const defaultEndpoint = "localhost:4317"

// Init sets up the global tracer provider when tracing is enabled and
// returns its shutdown func, or (nil, nil) when tracing is off.
func Init(ctx context.Context, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !enabled() {
		return nil, nil
	}

	serviceName := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))
	if serviceName == "" {
		serviceName = "tweetwatch"
	}

	exp, err := newTraceExporter(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("otel initialized",
		"service_name", serviceName,
		"otlp_endpoint", endpoint(),
		"otlp_protocol", protocol(),
	)

	return tp.Shutdown, nil
}

func enabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TWEETWATCH_OTEL_ENABLED"))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func endpoint() string {
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		return v
	}
	return defaultEndpoint
}

func protocol() string {
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")); v != "" {
		return v
	}
	return "grpc"
}

func insecure() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func newTraceExporter(ctx context.Context) (*otlptrace.Exporter, error) {
	switch protocol() {
	case "http/protobuf":
		opts := []otlptracehttp.Option{}
		ep := endpoint()
		if strings.Contains(ep, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(ep))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(ep))
		}
		if insecure() {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc":
		opts := []otlptracegrpc.Option{}
		ep := endpoint()
		if strings.Contains(ep, "://") {
			u, err := url.Parse(ep)
			if err != nil {
				return nil, fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
			}
			ep = u.Host
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(ep))
		if insecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q", protocol())
	}
}
