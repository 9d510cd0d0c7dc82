package main

import (
	"github.com/fyrsmithlabs/pitchroom/internal/config"
	"github.com/fyrsmithlabs/pitchroom/internal/summary"
	"github.com/fyrsmithlabs/pitchroom/pkg/secrets"
)

// newSummarizer builds the summary client with secret redaction. It returns
// summary.ErrNotConfigured when no endpoint is set.
func newSummarizer(s *settings) (*summary.Client, error) {
	if s.cfg.Summary.Endpoint == "" {
		return nil, summary.ErrNotConfigured
	}
	allowlist, err := config.ExpandPath(s.cfg.Summary.Allowlist)
	if err != nil {
		return nil, err
	}
	redactor, err := secrets.NewRedactor(allowlist)
	if err != nil {
		return nil, err
	}
	return summary.New(summary.Config{
		Endpoint: s.cfg.Summary.Endpoint,
		APIKey:   s.cfg.Summary.APIKey,
		Timeout:  s.cfg.Summary.Timeout.Duration(),
		Redactor: redactor,
		Logger:   s.logger,
	})
}
