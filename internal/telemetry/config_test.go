package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pitchroom/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "pitchroom", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SamplingRate)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "pitchroomd",
		OTLPEndpoint:    "https://otel.example.com",
		OTLPProtocol:    ProtocolHTTP,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "pitchroomd", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "https://otel.example.com", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.False(t, cfg.Insecure)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	enabled := func(mut func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		mut(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{name: "disabled skips validation", config: &Config{}},
		{name: "valid local", config: enabled(func(*Config) {})},
		{name: "missing endpoint", config: enabled(func(c *Config) { c.Endpoint = "" }), errMsg: "endpoint is required"},
		{name: "missing service name", config: enabled(func(c *Config) { c.ServiceName = "" }), errMsg: "service_name is required"},
		{name: "unknown protocol", config: enabled(func(c *Config) { c.Protocol = "thrift" }), errMsg: "unsupported otlp protocol"},
		{name: "insecure remote", config: enabled(func(c *Config) { c.Endpoint = "collector.example.com:4317" }), errMsg: "insecure connections"},
		{name: "secure remote", config: enabled(func(c *Config) {
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		})},
		{name: "sampling too high", config: enabled(func(c *Config) { c.SamplingRate = 1.5 }), errMsg: "sampling rate"},
		{name: "sampling negative", config: enabled(func(c *Config) { c.SamplingRate = -0.1 }), errMsg: "sampling rate"},
		{name: "zero export interval", config: enabled(func(c *Config) { c.ExportInterval = 0 }), errMsg: "export interval"},
		{name: "zero export interval without metrics", config: enabled(func(c *Config) {
			c.ExportInterval = 0
			c.Metrics = false
		})},
		{name: "zero shutdown timeout", config: enabled(func(c *Config) { c.ShutdownTimeout = 0 }), errMsg: "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_isLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"localhost.example.com:4317", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, cfg.isLocalEndpoint())
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("otel:4318"))
}
