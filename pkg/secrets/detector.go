package secrets

import (
	"regexp"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is one detected secret.
type Finding struct {
	RuleID   string // e.g. "github-pat"
	RuleDesc string
	Secret   string
}

// Detect scans content with the default Gitleaks rules. allowlist may be nil.
func Detect(content string, allowlist *Allowlist) ([]Finding, error) {
	// The detector accumulates findings across calls, so one per scan.
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	if allowlist != nil && len(allowlist.Regexes) > 0 {
		applyAllowlist(&detector.Config, allowlist)
	}

	found := detector.DetectString(content)
	out := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		out = append(out, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Secret:   f.Secret,
		})
	}
	return out, nil
}

// applyAllowlist adds allowlist patterns to cfg as a global allowlist.
// Patterns were validated by LoadAllowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) {
	global := &gitleaksConfig.Allowlist{Description: "pitchroom allowlist"}
	for _, pattern := range allowlist.Regexes {
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.Regexes...)
	cfg.Allowlists = append(cfg.Allowlists, global)
}
