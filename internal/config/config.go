// Package config provides configuration loading for pitchroom.
//
// Configuration comes from a YAML file, environment variable overrides and
// defaults, in that order of increasing precedence for env. Both the daemon
// and the CLI read the same file; each uses the sections it needs.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// Config holds the complete pitchroom configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Storage       StorageConfig       `koanf:"storage"`
	NATS          NATSConfig          `koanf:"nats"`
	Client        ClientConfig        `koanf:"client"`
	Summary       SummaryConfig       `koanf:"summary"`
	RateLimit     RateLimitConfig     `koanf:"ratelimit"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host              string   `koanf:"http_host"`
	Port              int      `koanf:"http_port"`
	ShutdownTimeout   Duration `koanf:"shutdown_timeout"`
	HeartbeatInterval Duration `koanf:"heartbeat_interval"`
}

// StorageConfig holds the durable store location.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig holds change-feed broker settings. An empty URL with Embedded
// set runs the broker in-process.
type NATSConfig struct {
	URL           string   `koanf:"url"`
	Embedded      bool     `koanf:"embedded"`
	EmbeddedPort  int      `koanf:"embedded_port"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	MaxReconnects int      `koanf:"max_reconnects"`
	ReconnectWait Duration `koanf:"reconnect_wait"`
}

// ClientConfig holds CLI settings.
type ClientConfig struct {
	ServerURL      string   `koanf:"server_url"`
	UserID         string   `koanf:"user_id"`
	DisplayName    string   `koanf:"display_name"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// SummaryConfig points at the summary generation endpoint.
type SummaryConfig struct {
	Endpoint string   `koanf:"endpoint"`
	APIKey   Secret   `koanf:"api_key"`
	Timeout  Duration `koanf:"timeout"`
	// Allowlist is a Gitleaks-style TOML file of patterns never redacted
	// from summary requests.
	Allowlist string `koanf:"allowlist"`
}

// RateLimitConfig bounds per-user message posting.
type RateLimitConfig struct {
	MessagesPerSecond float64 `koanf:"messages_per_second"`
	Burst             int     `koanf:"burst"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// LoggingConfig selects level and encoding for internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

var subjectTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.HeartbeatInterval == 0 {
		cfg.Server.HeartbeatInterval = Duration(30 * time.Second)
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "~/.config/pitchroom/pitchroom.db"
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.Embedded = true
	}
	if cfg.NATS.EmbeddedPort == 0 {
		cfg.NATS.EmbeddedPort = 4222
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "pitchroom"
	}
	if cfg.NATS.MaxReconnects == 0 {
		cfg.NATS.MaxReconnects = -1
	}
	if cfg.NATS.ReconnectWait == 0 {
		cfg.NATS.ReconnectWait = Duration(2 * time.Second)
	}

	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = "http://127.0.0.1:8420"
	}
	if cfg.Client.DisplayName == "" {
		cfg.Client.DisplayName = "You"
	}
	if cfg.Client.RequestTimeout == 0 {
		cfg.Client.RequestTimeout = Duration(15 * time.Second)
	}

	if cfg.Summary.Timeout == 0 {
		cfg.Summary.Timeout = Duration(60 * time.Second)
	}
	if cfg.Summary.Allowlist == "" {
		cfg.Summary.Allowlist = "~/.config/pitchroom/allowlist.toml"
	}

	if cfg.RateLimit.MessagesPerSecond == 0 {
		cfg.RateLimit.MessagesPerSecond = 5
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "pitchroom"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}
	if c.NATS.URL == "" && !c.NATS.Embedded {
		return errors.New("nats url is required when the embedded broker is disabled")
	}
	if c.NATS.Embedded && (c.NATS.EmbeddedPort < -1 || c.NATS.EmbeddedPort > 65535) {
		return fmt.Errorf("invalid embedded nats port: %d", c.NATS.EmbeddedPort)
	}
	if !subjectTokenRe.MatchString(c.NATS.SubjectPrefix) {
		return fmt.Errorf("invalid nats subject prefix %q", c.NATS.SubjectPrefix)
	}
	if _, err := url.ParseRequestURI(c.Client.ServerURL); err != nil {
		return fmt.Errorf("invalid client server url: %w", err)
	}
	if c.Summary.Endpoint != "" {
		if _, err := url.ParseRequestURI(c.Summary.Endpoint); err != nil {
			return fmt.Errorf("invalid summary endpoint: %w", err)
		}
	}
	if c.RateLimit.MessagesPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if p := c.Observability.OTLPProtocol; p != "grpc" && p != "http/protobuf" {
		return fmt.Errorf("otlp protocol must be grpc or http/protobuf, got %q", p)
	}
	return nil
}
