package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/protoguard/pkg/validate"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Rules configuration
	Rules RulesConfig

	// Ad-hoc check endpoint configuration
	Check CheckConfig

	// Audit trail configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP and gRPC listener configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RulesConfig selects the rules manifest and how it is applied
type RulesConfig struct {
	File string
	// Mode overrides the manifest's default mode when set.
	Mode     string
	MaxDepth int

	Watch          bool
	WatchDebounce  time.Duration
	ReloadSchedule string

	// Strict rejects gRPC requests whose type has no validator.
	Strict bool
}

// CheckConfig holds /v1/check settings
type CheckConfig struct {
	Enabled   bool
	CacheSize int
	CacheTTL  time.Duration

	// RateLimit is requests per minute per client, 0 disables limiting.
	RateLimit int
	RateBurst int
	// TrustProxyHeaders keys clients by X-Forwarded-For. Enable only behind
	// a proxy that sets it.
	TrustProxyHeaders bool
	// RedisURL shares the limit across replicas when set.
	RedisURL string
}

// Audit drivers
const (
	AuditNone     = ""
	AuditFile     = "file"
	AuditPostgres = "postgres"
	AuditSQLite   = "sqlite3"
)

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Driver     string
	DSN        string
	Dir        string
	MaxSize    int64
	MaxFiles   int
	RecordPass bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Rules:         loadRulesConfig(),
		Check:         loadCheckConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        getEnv("PROTOGUARD_HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("PROTOGUARD_GRPC_ADDR", ":9090"),
		ReadTimeout:     getEnvDuration("PROTOGUARD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PROTOGUARD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PROTOGUARD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PROTOGUARD_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadRulesConfig() RulesConfig {
	return RulesConfig{
		File:           getEnv("PROTOGUARD_RULES_FILE", "protoguard.yaml"),
		Mode:           getEnv("PROTOGUARD_MODE", ""),
		MaxDepth:       getEnvInt("PROTOGUARD_MAX_DEPTH", 0),
		Watch:          getEnvBool("PROTOGUARD_WATCH", false),
		WatchDebounce:  getEnvDuration("PROTOGUARD_WATCH_DEBOUNCE", 250*time.Millisecond),
		ReloadSchedule: getEnv("PROTOGUARD_RELOAD_SCHEDULE", ""),
		Strict:         getEnvBool("PROTOGUARD_GRPC_STRICT", false),
	}
}

func loadCheckConfig() CheckConfig {
	return CheckConfig{
		Enabled:   getEnvBool("PROTOGUARD_CHECK_ENABLED", true),
		CacheSize: getEnvInt("PROTOGUARD_SCHEMA_CACHE_SIZE", 64),
		CacheTTL:  getEnvDuration("PROTOGUARD_SCHEMA_CACHE_TTL", 10*time.Minute),
		RateLimit: getEnvInt("PROTOGUARD_CHECK_RATE_LIMIT", 60),
		RateBurst: getEnvInt("PROTOGUARD_CHECK_RATE_BURST", 10),
		RedisURL:  getEnv("PROTOGUARD_REDIS_URL", ""),

		TrustProxyHeaders: getEnvBool("PROTOGUARD_TRUST_PROXY_HEADERS", false),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Driver:     strings.ToLower(getEnv("PROTOGUARD_AUDIT_DRIVER", AuditNone)),
		DSN:        getEnv("PROTOGUARD_AUDIT_DSN", ""),
		Dir:        getEnv("PROTOGUARD_AUDIT_DIR", ""),
		MaxSize:    getEnvInt64("PROTOGUARD_AUDIT_MAX_SIZE", 100<<20),
		MaxFiles:   getEnvInt("PROTOGUARD_AUDIT_MAX_FILES", 10),
		RecordPass: getEnvBool("PROTOGUARD_AUDIT_RECORD_PASS", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("PROTOGUARD_LOG_LEVEL", "info"),
		LogFormat:          getEnv("PROTOGUARD_LOG_FORMAT", "json"),
		MetricsEnabled:     getEnvBool("PROTOGUARD_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PROTOGUARD_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PROTOGUARD_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PROTOGUARD_OTEL_SERVICE_NAME", "protoguard"),
		OTelServiceVersion: getEnv("PROTOGUARD_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PROTOGUARD_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("PROTOGUARD_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return fmt.Errorf("at least one of the HTTP and gRPC addresses is required")
	}
	if c.Server.HTTPAddr != "" && c.Server.HTTPAddr == c.Server.GRPCAddr {
		return fmt.Errorf("HTTP and gRPC addresses must be different")
	}

	if c.Rules.File == "" {
		return fmt.Errorf("rules file is required")
	}
	if _, err := validate.ParseMode(c.Rules.Mode); err != nil {
		return err
	}
	if c.Rules.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}

	if c.Check.RateLimit < 0 || c.Check.RateBurst < 0 {
		return fmt.Errorf("check rate limit must not be negative")
	}

	switch c.Audit.Driver {
	case AuditNone:
	case AuditFile:
		if c.Audit.Dir == "" {
			return fmt.Errorf("audit directory is required for file audit")
		}
	case AuditPostgres, AuditSQLite:
		if c.Audit.DSN == "" {
			return fmt.Errorf("audit DSN is required for %s audit", c.Audit.Driver)
		}
	default:
		return fmt.Errorf("invalid audit driver: %s (must be file, postgres, or sqlite3)", c.Audit.Driver)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ModeOverride returns the configured mode, or nil to keep the manifest's.
func (c *Config) ModeOverride() *validate.Mode {
	if c.Rules.Mode == "" {
		return nil
	}
	mode, err := validate.ParseMode(c.Rules.Mode)
	if err != nil {
		return nil
	}
	return &mode
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
