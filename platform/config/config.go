// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HistoryConfig provides history log storage settings.
type HistoryConfig interface {
	// GetHistoryDatabaseURL returns "" for the in-memory log.
	GetHistoryDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// PipelineConfig provides settings for the batch orchestrator.
type PipelineConfig interface {
	GetPipelineWorkers() int
	GetScoringPolicyFile() string
}

// EnrichmentConfig provides settings for the enrichment stage.
type EnrichmentConfig interface {
	GetEnrichmentMaxAttempts() int
	GetEnrichmentBaseBackoff() time.Duration
	GetEnrichmentMaxBackoff() time.Duration
	GetEnrichmentRateLimit() float64
	GetEnrichmentSimulatedFailures() map[string]int
	GetEnrichmentCacheTTL() time.Duration
}

// SchedulerConfig provides settings for follow-up dispatch.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueue() string
	GetAsynqConcurrency() int
	GetFollowUpSweepSpec() string
	IsAsynqEnabled() bool
}

// OutreachConfig provides sender identity for drafted messages.
type OutreachConfig interface {
	GetOutreachSenderName() string
	GetOutreachFromAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                         string
	HTTPAddr                    string
	HistoryDatabaseURL          string
	JWTAccessSecret             string
	CORSAllowAll                bool
	CORSOrigins                 []string
	CORSAllowCreds              bool
	RedisURL                    string
	RedisTLSInsecure            bool
	AsynqQueue                  string
	AsynqConcurrency            int
	PipelineWorkers             int
	EnrichmentMaxAttempts       int
	EnrichmentBaseBackoff       time.Duration
	EnrichmentMaxBackoff        time.Duration
	EnrichmentRateLimit         float64
	EnrichmentSimulatedFailures map[string]int
	EnrichmentCacheTTL          time.Duration
	FollowUpSweepSpec           string
	ScoringPolicyFile           string
	OutreachSenderName          string
	OutreachFromAddress         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HistoryConfig implementation
func (c *Config) GetHistoryDatabaseURL() string { return c.HistoryDatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// PipelineConfig implementation
func (c *Config) GetPipelineWorkers() int      { return c.PipelineWorkers }
func (c *Config) GetScoringPolicyFile() string { return c.ScoringPolicyFile }

// EnrichmentConfig implementation
func (c *Config) GetEnrichmentMaxAttempts() int           { return c.EnrichmentMaxAttempts }
func (c *Config) GetEnrichmentBaseBackoff() time.Duration { return c.EnrichmentBaseBackoff }
func (c *Config) GetEnrichmentMaxBackoff() time.Duration  { return c.EnrichmentMaxBackoff }
func (c *Config) GetEnrichmentRateLimit() float64         { return c.EnrichmentRateLimit }
func (c *Config) GetEnrichmentCacheTTL() time.Duration    { return c.EnrichmentCacheTTL }
func (c *Config) GetEnrichmentSimulatedFailures() map[string]int {
	return c.EnrichmentSimulatedFailures
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string          { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool    { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueue() string        { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int     { return c.AsynqConcurrency }
func (c *Config) GetFollowUpSweepSpec() string { return c.FollowUpSweepSpec }
func (c *Config) IsAsynqEnabled() bool         { return c.RedisURL != "" }

// OutreachConfig implementation
func (c *Config) GetOutreachSenderName() string  { return c.OutreachSenderName }
func (c *Config) GetOutreachFromAddress() string { return c.OutreachFromAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	failures, err := ParseFailureBudget(getEnv("ENRICHMENT_SIMULATED_FAILURES", ""))
	if err != nil {
		return nil, fmt.Errorf("ENRICHMENT_SIMULATED_FAILURES: %w", err)
	}

	cfg := &Config{
		Env:                         getEnv("APP_ENV", "development"),
		HTTPAddr:                    getEnv("HTTP_ADDR", ":8080"),
		HistoryDatabaseURL:          getEnv("HISTORY_DATABASE_URL", ""),
		JWTAccessSecret:             getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                corsAllowAll,
		CORSOrigins:                 corsOrigins,
		CORSAllowCreds:              strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RedisURL:                    getEnv("REDIS_URL", ""),
		RedisTLSInsecure:            strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:                  getEnv("ASYNQ_QUEUE", "followups"),
		AsynqConcurrency:            mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		PipelineWorkers:             mustInt(getEnv("PIPELINE_WORKERS", "8")),
		EnrichmentMaxAttempts:       mustInt(getEnv("ENRICHMENT_MAX_ATTEMPTS", "3")),
		EnrichmentBaseBackoff:       mustDuration(getEnv("ENRICHMENT_BASE_BACKOFF", "50ms")),
		EnrichmentMaxBackoff:        mustDuration(getEnv("ENRICHMENT_MAX_BACKOFF", "1s")),
		EnrichmentRateLimit:         mustFloat(getEnv("ENRICHMENT_RATE_LIMIT", "0")),
		EnrichmentSimulatedFailures: failures,
		EnrichmentCacheTTL:          mustDuration(getEnv("ENRICHMENT_CACHE_TTL", "24h")),
		FollowUpSweepSpec:           getEnv("FOLLOWUP_SWEEP_SPEC", "@every 1m"),
		ScoringPolicyFile:           getEnv("SCORING_POLICY_FILE", ""),
		OutreachSenderName:          getEnv("OUTREACH_SENDER_NAME", "SmartSales"),
		OutreachFromAddress:         getEnv("OUTREACH_FROM_ADDRESS", "sales@smartsales.local"),
	}

	if cfg.PipelineWorkers < 1 {
		return nil, fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if cfg.EnrichmentMaxAttempts < 1 {
		return nil, fmt.Errorf("ENRICHMENT_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.AsynqConcurrency < 1 {
		return nil, fmt.Errorf("ASYNQ_CONCURRENCY must be at least 1")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// ParseFailureBudget parses "acmepay.com=2,shopright.pk=5" into a per-domain
// count of simulated transient enrichment failures.
func ParseFailureBudget(value string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range splitCSV(value) {
		domain, count, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not domain=count", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("entry %q has invalid count", part)
		}
		out[strings.ToLower(strings.TrimSpace(domain))] = n
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
