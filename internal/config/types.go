package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from strings such as "30s", so
// it can be set from YAML and environment variables.
type Duration time.Duration

// UnmarshalText parses a non-negative Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// redacted stands in for a set Secret wherever it is printed.
const redacted = "[REDACTED]"

// Secret is a credential such as the summary API key. Formatting and
// serialization show a placeholder; only Value returns the credential.
type Secret string

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

// String implements fmt.Stringer.
func (s Secret) String() string { return s.masked() }

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string { return "config.Secret(" + strconv.Quote(s.masked()) + ")" }

// Value returns the credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential is configured.
func (s Secret) IsSet() bool { return s != "" }

// MarshalText implements encoding.TextMarshaler. encoding/json uses it too.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// UnmarshalText stores the credential with surrounding whitespace removed.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(strings.TrimSpace(string(text)))
	return nil
}
