package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "github.com/irfndi/newsindex-ai-go"
	ServiceVersion = "1.0.0"
)

// Exporters understood by InitTelemetry.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// TelemetryConfig holds configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	Exporter       string
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	// ExportLogs adds an OTLP log pipeline next to the trace exporter.
	// Only the otlp exporter ships logs.
	ExportLogs bool
	// Writer receives stdout-exporter output; nil means os.Stdout.
	Writer io.Writer
}

// Provider owns the tracer provider installed by InitTelemetry.
type Provider struct {
	tp *sdktrace.TracerProvider
	lp *sdklog.LoggerProvider
}

// InitTelemetry installs a global tracer provider and W3C propagators. When
// telemetry is disabled the global no-op provider stays in place.
func InitTelemetry(ctx context.Context, config TelemetryConfig) (*Provider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !config.Enabled {
		return &Provider{}, nil
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = ServiceName
	}
	version := config.ServiceVersion
	if version == "" {
		version = ServiceVersion
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		attribute.String("deployment.environment", config.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	provider := &Provider{tp: tp}

	if config.ExportLogs && config.Exporter != ExporterStdout {
		logExporter, err := newLogExporter(ctx, config.OTLPEndpoint)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		provider.lp = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
	}
	return provider, nil
}

func newLogExporter(ctx context.Context, endpoint string) (sdklog.Exporter, error) {
	hostport, path, insecure, _, err := normalizeOTLPEndpoint(endpoint, logsPath)
	if err != nil {
		return nil, err
	}
	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(hostport),
		otlploghttp.WithURLPath(path),
	}
	if insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exp, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	return exp, nil
}

func newExporter(ctx context.Context, config TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case ExporterStdout:
		w := config.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLP, "":
		hostport, path, insecure, _, err := normalizeOTLPEndpoint(config.OTLPEndpoint, tracesPath)
		if err != nil {
			return nil, err
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(hostport),
			otlptracehttp.WithURLPath(path),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", config.Exporter)
	}
}

const (
	tracesPath = "/v1/traces"
	logsPath   = "/v1/logs"
)

// normalizeOTLPEndpoint splits an endpoint into the exporter's host:port and
// the URL path for one signal. A bare host:port is taken as plain HTTP.
func normalizeOTLPEndpoint(endpoint, signalPath string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "http://localhost:4318"
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", "", false, "", fmt.Errorf("invalid otlp endpoint %q", endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false, "", fmt.Errorf("invalid otlp endpoint scheme %q", u.Scheme)
	}

	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(strings.TrimSuffix(path, tracesPath), logsPath)
	path += signalPath
	insecure = u.Scheme == "http"
	resolved = u.Scheme + "://" + u.Host + path
	return u.Host, path, insecure, resolved, nil
}

// Logger returns an OpenTelemetry logger when log export is configured, and
// nil otherwise.
func (p *Provider) Logger(name string) otellog.Logger {
	if p == nil || p.lp == nil {
		return nil
	}
	return p.lp.Logger(name)
}

// Shutdown flushes pending spans and log records and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.lp != nil {
		errs = append(errs, p.lp.Shutdown(ctx))
	}
	if p.tp != nil {
		errs = append(errs, p.tp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the tracer for one component of the service, e.g. "pipeline".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(ServiceName + "/" + component)
}
