package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Scoring     ScoringConfig   `mapstructure:"scoring"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	AdminAPIKey    string        `mapstructure:"admin_api_key" json:"-" yaml:"-"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns DatabaseURL when set, otherwise a keyword/value string.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr is host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key" json:"-" yaml:"-"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type LLMConfig struct {
	Provider    string         `mapstructure:"provider"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	Temperature float64        `mapstructure:"temperature"`
	Gemini      ProviderConfig `mapstructure:"gemini"`
	Anthropic   ProviderConfig `mapstructure:"anthropic"`
	OpenAI      ProviderConfig `mapstructure:"openai"`
}

// Active returns the settings of the selected provider.
func (c LLMConfig) Active() ProviderConfig {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic
	case "openai":
		return c.OpenAI
	default:
		return c.Gemini
	}
}

type ScoringConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	Concurrency       int           `mapstructure:"concurrency"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BackoffFactor     float64       `mapstructure:"backoff_factor"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

type PipelineConfig struct {
	TopKeywords      int           `mapstructure:"top_keywords"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	AnalysisSchedule string        `mapstructure:"analysis_schedule"`
	LearningSchedule string        `mapstructure:"learning_schedule"`
	Timezone         string        `mapstructure:"timezone"`
	SchedulerEnabled bool          `mapstructure:"scheduler_enabled"`
}

// Location resolves Timezone. Load has already validated it.
func (c PipelineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ExportLogs   bool    `mapstructure:"export_logs"`
}

var validProviders = map[string]bool{"gemini": true, "anthropic": true, "openai": true}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Conventional names used by the provider SDKs.
	envAliases := map[string]string{
		"llm.gemini.api_key":    "GEMINI_API_KEY",
		"llm.anthropic.api_key": "ANTHROPIC_API_KEY",
		"llm.openai.api_key":    "OPENAI_API_KEY",
		"server.admin_api_key":  "ADMIN_API_KEY",
	}
	for key, env := range envAliases {
		if err := viper.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	config.Environment = strings.ToLower(config.Environment)
	config.LLM.Provider = strings.ToLower(config.LLM.Provider)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Environment != "development" && c.Server.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY environment variable is required in non-development environments")
	}
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("unsupported llm provider %q (want gemini, anthropic or openai)", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Scoring.RequestsPerMinute < 0 {
		return fmt.Errorf("scoring requests_per_minute must not be negative, got %d", c.Scoring.RequestsPerMinute)
	}
	if c.Scoring.Concurrency < 1 {
		return fmt.Errorf("scoring concurrency must be at least 1, got %d", c.Scoring.Concurrency)
	}
	if c.Scoring.MaxRetries < 0 {
		return fmt.Errorf("scoring max_retries must not be negative, got %d", c.Scoring.MaxRetries)
	}
	if c.Scoring.BackoffFactor < 1 {
		return fmt.Errorf("scoring backoff_factor must be at least 1, got %v", c.Scoring.BackoffFactor)
	}
	if c.Pipeline.TopKeywords < 1 || c.Pipeline.TopKeywords > 10 {
		return fmt.Errorf("pipeline top_keywords must be between 1 and 10, got %d", c.Pipeline.TopKeywords)
	}
	if c.Pipeline.LeaseTTL <= 0 {
		return fmt.Errorf("pipeline lease_ttl must be positive, got %s", c.Pipeline.LeaseTTL)
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("invalid pipeline timezone %q: %w", c.Pipeline.Timezone, err)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
	}
	if c.Telemetry.Exporter != "stdout" && c.Telemetry.Exporter != "otlp" {
		return fmt.Errorf("unsupported telemetry exporter %q (want stdout or otlp)", c.Telemetry.Exporter)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.admin_api_key", "")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15m")

	// Database
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "newsindex")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.min_conns", 1)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// LLM
	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.gemini.api_key", "")
	viper.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("llm.gemini.max_tokens", 1024)
	viper.SetDefault("llm.anthropic.api_key", "")
	viper.SetDefault("llm.anthropic.model", "claude-haiku-4-5")
	viper.SetDefault("llm.anthropic.max_tokens", 1024)
	viper.SetDefault("llm.openai.api_key", "")
	viper.SetDefault("llm.openai.model", "gpt-4o-mini")
	viper.SetDefault("llm.openai.max_tokens", 1024)

	// Scoring
	viper.SetDefault("scoring.requests_per_minute", 15)
	viper.SetDefault("scoring.burst", 1)
	viper.SetDefault("scoring.concurrency", 1)
	viper.SetDefault("scoring.max_retries", 3)
	viper.SetDefault("scoring.initial_backoff", "1s")
	viper.SetDefault("scoring.max_backoff", "8s")
	viper.SetDefault("scoring.backoff_factor", 2.0)
	viper.SetDefault("scoring.breaker_threshold", 5)
	viper.SetDefault("scoring.breaker_cooldown", "60s")

	// Pipeline
	viper.SetDefault("pipeline.top_keywords", 10)
	viper.SetDefault("pipeline.lease_ttl", "10m")
	viper.SetDefault("pipeline.analysis_schedule", "0 8 * * *")
	viper.SetDefault("pipeline.learning_schedule", "0 16 * * *")
	viper.SetDefault("pipeline.timezone", "UTC")
	viper.SetDefault("pipeline.scheduler_enabled", true)

	// Cache
	viper.SetDefault("cache.ttl", "1h")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "otlp")
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.service_name", "newsindex-ai")
	viper.SetDefault("telemetry.sample_rate", 0.2)
	viper.SetDefault("telemetry.export_logs", false)
}
