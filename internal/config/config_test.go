package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"no storage", func(c *Config) { c.Storage.Path = "" }, "storage path"},
		{"no broker", func(c *Config) { c.NATS.URL = ""; c.NATS.Embedded = false }, "nats url"},
		{"subject prefix", func(c *Config) { c.NATS.SubjectPrefix = "a b" }, "subject prefix"},
		{"server url", func(c *Config) { c.Client.ServerURL = "::bad" }, "server url"},
		{"summary endpoint", func(c *Config) { c.Summary.Endpoint = "not a url" }, "summary endpoint"},
		{"negative burst", func(c *Config) { c.RateLimit.Burst = -1 }, "rate limit"},
		{"otlp protocol", func(c *Config) { c.Observability.OTLPProtocol = "udp" }, "otlp protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("sk-live")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, `config.Secret("[REDACTED]")`, fmt.Sprintf("%#v", s))

	out, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key":"[REDACTED]"}`, string(out))

	assert.Equal(t, "sk-live", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, "250ms", d.Duration().String())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "250ms", string(out))
}

func TestSecret_UnmarshalTrimsWhitespace(t *testing.T) {
	var s Secret
	require.NoError(t, json.Unmarshal([]byte(`"  sk-live\n"`), &s))
	assert.Equal(t, "sk-live", s.Value())
}
