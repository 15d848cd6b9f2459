package telemetry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		signal   string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", tracesPath, "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"empty uses default", "", tracesPath, "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"bare host port", "collector:4318", tracesPath, "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", tracesPath, "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", tracesPath, "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", tracesPath, "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"logs from traces endpoint", "http://collector:4318/v1/traces", logsPath, "collector:4318", "/v1/logs", true, "http://collector:4318/v1/logs", false},
		{"unsupported scheme", "grpc://collector:4317", tracesPath, "", "", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input, tt.signal)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestInitTelemetry_Disabled(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	provider, err := InitTelemetry(context.Background(), TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))

	_, span := Tracer("http").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTelemetry_StdoutExporter(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	provider, err := InitTelemetry(context.Background(), TelemetryConfig{
		Enabled:     true,
		Exporter:    ExporterStdout,
		ServiceName: "newsindex-test",
		Environment: "test",
		SampleRate:  1,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.analyze")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "pipeline.analyze")
	assert.Contains(t, buf.String(), "newsindex-test")
}

func TestInitTelemetry_ExportsLogs(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	paths := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider, err := InitTelemetry(context.Background(), TelemetryConfig{
		Enabled:      true,
		Exporter:     ExporterOTLP,
		OTLPEndpoint: srv.URL,
		SampleRate:   1,
		ExportLogs:   true,
	})
	require.NoError(t, err)

	logger := provider.Logger("newsindex-test")
	require.NotNil(t, logger)
	var record otellog.Record
	record.SetBody(otellog.StringValue("Analysis completed"))
	logger.Emit(context.Background(), record)

	require.NoError(t, provider.Shutdown(context.Background()))
	select {
	case path := <-paths:
		assert.Equal(t, "/v1/logs", path)
	case <-time.After(5 * time.Second):
		t.Fatal("no log export request received")
	}
}

func TestInitTelemetry_LogsRequireOTLP(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	provider, err := InitTelemetry(context.Background(), TelemetryConfig{
		Enabled:    true,
		Exporter:   ExporterStdout,
		Writer:     io.Discard,
		ExportLogs: true,
	})
	require.NoError(t, err)
	assert.Nil(t, provider.Logger("x"))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTelemetry_UnknownExporter(t *testing.T) {
	_, err := InitTelemetry(context.Background(), TelemetryConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unsupported trace exporter")
}

func TestProvider_NilShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.Nil(t, p.Logger("x"))
}
