package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/newsindex-ai-go/internal/api/handlers"
	"github.com/irfndi/newsindex-ai-go/internal/config"
	"github.com/irfndi/newsindex-ai-go/internal/services"
	"github.com/irfndi/newsindex-ai-go/pkg/llm"
)

type stubClient struct {
	reply string
}

func (s stubClient) Generate(context.Context, llm.Request) (string, error) { return s.reply, nil }
func (s stubClient) Model() string                                         { return "stub-model" }

const bullishReply = `{"sentiment":"positive","confidence":85,"keywords":["rate cut"],"reason":"easing"}`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Server().Addr().Port

	return &config.Config{
		Environment: "development",
		LogLevel:    "info",
		Server:      config.ServerConfig{Port: 0, AdminAPIKey: "admin", ReadTimeout: time.Second, WriteTimeout: time.Second},
		Database:    config.DatabaseConfig{Enabled: false},
		Redis:       config.RedisConfig{Enabled: true, Host: host, Port: port},
		LLM:         config.LLMConfig{Provider: "gemini", Timeout: time.Second},
		Scoring: config.ScoringConfig{
			Concurrency:    2,
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			BackoffFactor:  2,
		},
		Pipeline: config.PipelineConfig{
			TopKeywords:      10,
			LeaseTTL:         time.Minute,
			AnalysisSchedule: services.DefaultAnalysisSchedule,
			LearningSchedule: services.DefaultLearningSchedule,
			Timezone:         "UTC",
			SchedulerEnabled: true,
		},
		Cache:     config.CacheConfig{TTL: time.Minute},
		Telemetry: config.TelemetryConfig{ServiceName: "newsindex-test"},
	}
}

func TestNewApplication_ServesAPI(t *testing.T) {
	cfg := testConfig(t)
	app, err := newApplication(context.Background(), cfg, quietLogger(), stubClient{reply: bullishReply})
	require.NoError(t, err)
	t.Cleanup(app.close)

	require.NotNil(t, app.scheduler)
	srv := httptest.NewServer(app.server.Handler)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/articles/2026-01-15",
		strings.NewReader(`[{"id":1,"title":"Fed signals rate cut"}]`))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "admin")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/api/v1/analysis/run?date=2026-01-15", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer admin")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run services.AnalysisRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, 100.0, run.Result.InvestmentIndex)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	var status handlers.HealthResponse
	require.NoError(t, json.NewDecoder(health.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Services["redis"])
	assert.Equal(t, "disabled", status.Services["database"])
}

func TestNewApplication_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Port = 1

	_, err := newApplication(context.Background(), cfg, quietLogger(), stubClient{})
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestNewApplication_InvalidDatabaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{Enabled: true, DatabaseURL: "postgres://%zz"}

	_, err := newApplication(context.Background(), cfg, quietLogger(), stubClient{})
	assert.ErrorContains(t, err, "failed to parse database config")
}

func TestApplication_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = false
	app, err := newApplication(context.Background(), cfg, quietLogger(), stubClient{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestScoringConfig(t *testing.T) {
	out := scoringConfig(config.ScoringConfig{
		RequestsPerMinute: 30,
		Burst:             2,
		Concurrency:       4,
		MaxRetries:        5,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffFactor:     1.5,
		BreakerThreshold:  7,
		BreakerCooldown:   2 * time.Minute,
	})

	assert.Equal(t, 30, out.RequestsPerMinute)
	assert.Equal(t, 4, out.Concurrency)
	assert.Equal(t, 7, out.Breaker.FailureThreshold)
	assert.Equal(t, 2*time.Minute, out.Breaker.Timeout)

	defaults := scoringConfig(config.ScoringConfig{})
	assert.Equal(t, services.DefaultScoringConfig().Breaker, defaults.Breaker)
}
