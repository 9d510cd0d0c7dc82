package secrets

import (
	"fmt"
	"sort"
	"strings"
)

// Redactor replaces detected secrets with "[REDACTED:rule-id]" markers.
type Redactor struct {
	allowlist *Allowlist
}

// NewRedactor loads the allowlist at allowlistPath, which may be empty or
// missing.
func NewRedactor(allowlistPath string) (*Redactor, error) {
	allowlist, err := LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}
	return &Redactor{allowlist: allowlist}, nil
}

// Redact returns content with every occurrence of each detected secret
// replaced, and the number of distinct secrets replaced.
func (r *Redactor) Redact(content string) (string, int, error) {
	findings, err := Detect(content, r.allowlist)
	if err != nil {
		return "", 0, fmt.Errorf("detecting secrets: %w", err)
	}
	if len(findings) == 0 {
		return content, 0, nil
	}
	return replaceFindings(content, findings), countSecrets(findings), nil
}

// replaceFindings replaces longer secrets first so a secret containing
// another is not split by the shorter one's marker.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Secret) > len(sorted[j].Secret)
	})
	for _, f := range sorted {
		content = strings.ReplaceAll(content, f.Secret, "[REDACTED:"+f.RuleID+"]")
	}
	return content
}

func countSecrets(findings []Finding) int {
	seen := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		seen[f.Secret] = struct{}{}
	}
	return len(seen)
}
