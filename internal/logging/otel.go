package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore creates a core with stdout, file and/or OTEL outputs. The returned
// file is nil unless a file output is configured; the caller closes it.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, *os.File, error) {
	cores := make([]zapcore.Core, 0, 3)

	var encoder zapcore.Encoder
	if cfg.Output.Stdout || cfg.Output.File != "" {
		var err error
		encoder, err = NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
	}

	if cfg.Output.Stdout {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), cfg.Level))
	}

	var file *os.File
	if cfg.Output.File != "" {
		var err error
		file, err = openLogFile(cfg.Output.File)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(file), cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("pitchroom", otelzap.WithLoggerProvider(otelProvider)))
	}

	if len(cores) == 0 {
		return nil, nil, fmt.Errorf("at least one output must be enabled and available")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}
	return newSampledCore(core, cfg.Sampling), file, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
