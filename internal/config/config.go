// Package config loads typed configuration for the orchestrator from
// environment variables with sensible defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the concierge orchestrator.
type Config struct {
	SessionStoreRoot string
	Telemetry        TelemetryConfig
	Timeouts         TimeoutConfig
	FileSummarizer   FileSummarizerConfig
	Email            EmailConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// TimeoutConfig holds the per-agent timeout budgets.
type TimeoutConfig struct {
	LLMCall        time.Duration
	Calendar       time.Duration
	Email          time.Duration
	General        time.Duration
	File           time.Duration
	OuterRequest   time.Duration
}

type FileSummarizerConfig struct {
	MaxFileBytes      int64
	ChunkSize         int
	ChunkOverlap      int
	MapConcurrency    int
}

type EmailConfig struct {
	ApprovalTimeout time.Duration
	SendMaxRetries  int
	SendRetryDelay  time.Duration
	DraftRetentionDays int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		SessionStoreRoot: envStr("CONCIERGE_SESSION_ROOT", "./data/sessions"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "concierge-orchestrator"),
		},
		Timeouts: TimeoutConfig{
			LLMCall:      envDuration("CONCIERGE_LLM_TIMEOUT", 60*time.Second),
			Calendar:     envDuration("CONCIERGE_CALENDAR_TIMEOUT", 60*time.Second),
			Email:        envDuration("CONCIERGE_EMAIL_TIMEOUT", 60*time.Second),
			General:      envDuration("CONCIERGE_GENERAL_TIMEOUT", 90*time.Second),
			File:         envDuration("CONCIERGE_FILE_TIMEOUT", 120*time.Second),
			OuterRequest: envDuration("CONCIERGE_OUTER_TIMEOUT", 300*time.Second),
		},
		FileSummarizer: FileSummarizerConfig{
			MaxFileBytes:   envInt64("CONCIERGE_FILE_MAX_BYTES", 50*1024*1024),
			ChunkSize:      envInt("CONCIERGE_CHUNK_SIZE", 2000),
			ChunkOverlap:   envInt("CONCIERGE_CHUNK_OVERLAP", 200),
			MapConcurrency: envInt("CONCIERGE_MAP_CONCURRENCY", 4),
		},
		Email: EmailConfig{
			ApprovalTimeout:    envDuration("CONCIERGE_APPROVAL_TIMEOUT", 24*time.Hour),
			SendMaxRetries:     envInt("CONCIERGE_SEND_MAX_RETRIES", 3),
			SendRetryDelay:     envDuration("CONCIERGE_SEND_RETRY_DELAY", 5*time.Second),
			DraftRetentionDays: envInt("CONCIERGE_DRAFT_RETENTION_DAYS", 30),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
