package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Portal    PortalConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
	Business  BusinessConfig
	Health    HealthConfig
}

type ServerConfig struct {
	Port               string
	Host               string
	Env                string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RateLimitPerMinute int
	WorkflowIdleTTL    time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host          string
	Port          string
	Password      string
	DB            int
	AgentCacheTTL time.Duration
}

type PortalConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SchedulerConfig struct {
	Spec              string
	AgentIDs          []string
	ExpiryWarningDays int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type BusinessConfig struct {
	EligibilityWindowDays int
	WalletFlow            domain.WalletFlow
	InvoiceEnabled        bool
}

type HealthConfig struct {
	Timeout time.Duration
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("WORKFLOW_IDLE_TTL", "30m")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AGENT_CACHE_TTL", "24h")
	v.SetDefault("PORTAL_TIMEOUT", "20s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ELIGIBILITY_WINDOW_DAYS", 15)
	v.SetDefault("WALLET_FLOW", string(domain.WalletFlowAyushpay))
	v.SetDefault("INVOICE_ENABLED", true)
	v.SetDefault("SCHEDULER_SPEC", "0 0 8 * * *")
	v.SetDefault("EXPIRY_WARNING_DAYS", 3)
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	config := Config{
		Server: ServerConfig{
			Port:               v.GetString("SERVER_PORT"),
			Host:               v.GetString("SERVER_HOST"),
			Env:                v.GetString("ENV"),
			ReadTimeout:        v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:       v.GetDuration("SERVER_WRITE_TIMEOUT"),
			RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
			WorkflowIdleTTL:    v.GetDuration("WORKFLOW_IDLE_TTL"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Host:          v.GetString("REDIS_HOST"),
			Port:          v.GetString("REDIS_PORT"),
			Password:      v.GetString("REDIS_PASSWORD"),
			DB:            v.GetInt("REDIS_DB"),
			AgentCacheTTL: v.GetDuration("AGENT_CACHE_TTL"),
		},
		Portal: PortalConfig{
			BaseURL: strings.TrimSuffix(v.GetString("PORTAL_BASE_URL"), "/"),
			APIKey:  v.GetString("PORTAL_API_KEY"),
			Timeout: v.GetDuration("PORTAL_TIMEOUT"),
		},
		Scheduler: SchedulerConfig{
			Spec:              v.GetString("SCHEDULER_SPEC"),
			AgentIDs:          splitList(v.GetString("SCHEDULER_AGENT_IDS")),
			ExpiryWarningDays: v.GetInt("EXPIRY_WARNING_DAYS"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Business: BusinessConfig{
			EligibilityWindowDays: v.GetInt("ELIGIBILITY_WINDOW_DAYS"),
			WalletFlow:            domain.WalletFlow(strings.ToLower(v.GetString("WALLET_FLOW"))),
			InvoiceEnabled:        v.GetBool("INVOICE_ENABLED"),
		},
		Health: HealthConfig{
			Timeout: v.GetDuration("HEALTH_CHECK_TIMEOUT"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Server.WorkflowIdleTTL < 0 {
		return fmt.Errorf("WORKFLOW_IDLE_TTL must not be negative")
	}

	if c.Portal.BaseURL == "" {
		return fmt.Errorf("PORTAL_BASE_URL is required")
	}

	if c.Portal.Timeout <= 0 {
		return fmt.Errorf("PORTAL_TIMEOUT must be a positive duration")
	}

	if c.Business.EligibilityWindowDays <= 0 {
		return fmt.Errorf("ELIGIBILITY_WINDOW_DAYS must be greater than 0")
	}

	switch c.Business.WalletFlow {
	case domain.WalletFlowAyushpay, domain.WalletFlowPracto:
	default:
		return fmt.Errorf("WALLET_FLOW must be %q or %q", domain.WalletFlowAyushpay, domain.WalletFlowPracto)
	}

	// Validate scheduler spec
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Scheduler.Spec); err != nil {
		return fmt.Errorf("SCHEDULER_SPEC must be a valid cron expression: %w", err)
	}

	if c.Scheduler.ExpiryWarningDays < 0 {
		return fmt.Errorf("EXPIRY_WARNING_DAYS must not be negative")
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a positive duration")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// JournalEnabled reports whether a database is configured for the settlement journal
func (c *Config) JournalEnabled() bool {
	return c.Database.URL != ""
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
