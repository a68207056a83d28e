package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// RedisConfig holds Redis connection settings for the run-status cache.
// Redis is optional; an empty addr disables run-status tracking.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DispatchConfig holds send-pipeline tuning knobs.
type DispatchConfig struct {
	InterSendDelayMs int    `yaml:"inter_send_delay_ms"`
	SMTPHost         string `yaml:"smtp_host"`
	SMTPPort         int    `yaml:"smtp_port"`
	// SMTPDisableTLS skips the STARTTLS upgrade. Only for local test
	// relays; real submission ports require it.
	SMTPDisableTLS    bool `yaml:"smtp_disable_starttls"`
	SMTPTimeoutSecs   int  `yaml:"smtp_timeout_seconds"`
	DNSTimeoutSecs    int  `yaml:"dns_timeout_seconds"`
	FailureLockTTLMin int  `yaml:"failure_lock_ttl_mins"`
}

// InterSendDelay returns the pacing delay between sequential sends.
func (c DispatchConfig) InterSendDelay() time.Duration {
	return time.Duration(c.InterSendDelayMs) * time.Millisecond
}

// SMTPTimeout returns the SMTP dial/handshake timeout.
func (c DispatchConfig) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSecs) * time.Second
}

// DNSTimeout returns the per-lookup MX resolution timeout.
func (c DispatchConfig) DNSTimeout() time.Duration {
	return time.Duration(c.DNSTimeoutSecs) * time.Second
}

// LockTTL returns how long a per-job dispatch lock may be held.
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.FailureLockTTLMin) * time.Minute
}

// ProfilesConfig holds the sender-profile directory settings.
type ProfilesConfig struct {
	Dir         string `yaml:"dir"`
	RefreshSecs int    `yaml:"refresh_seconds"`
}

// Refresh returns the profile directory rescan interval.
func (c ProfilesConfig) Refresh() time.Duration {
	return time.Duration(c.RefreshSecs) * time.Second
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifeMins == 0 {
		cfg.Database.ConnMaxLifeMins = 30
	}
	if cfg.Dispatch.InterSendDelayMs == 0 {
		cfg.Dispatch.InterSendDelayMs = 1000
	}
	if cfg.Dispatch.SMTPHost == "" {
		cfg.Dispatch.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Dispatch.SMTPPort == 0 {
		cfg.Dispatch.SMTPPort = 587
	}
	if cfg.Dispatch.SMTPTimeoutSecs == 0 {
		cfg.Dispatch.SMTPTimeoutSecs = 30
	}
	if cfg.Dispatch.DNSTimeoutSecs == 0 {
		cfg.Dispatch.DNSTimeoutSecs = 5
	}
	if cfg.Dispatch.FailureLockTTLMin == 0 {
		cfg.Dispatch.FailureLockTTLMin = 30
	}
	if cfg.Profiles.Dir == "" {
		cfg.Profiles.Dir = "./profiles"
	}
	if cfg.Profiles.RefreshSecs == 0 {
		cfg.Profiles.RefreshSecs = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Dispatch.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Dispatch.SMTPPort = p
		}
	}
	if dir := os.Getenv("PROFILE_DIR"); dir != "" {
		cfg.Profiles.Dir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
