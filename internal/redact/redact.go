// Package redact scrubs credential-shaped substrings out of evidence
// pulled from scanned artifacts (extracted strings, email headers, URL
// query parameters) before it reaches logs or persisted detections.
// Samples routinely embed real API keys and passwords; surfacing them
// verbatim in findings would leak them a second time.
package redact

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(secret|token|auth)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(Bearer)\s+[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(?i)(password)["']?\s*[:=]\s*["']?[^"'\s,}]+["']?`),
	regexp.MustCompile(`(?i)(private[_-]?key|privkey)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(access[_-]?key|aws[_-]?secret)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
}

var blockedFields = []string{
	"password", "secret", "token", "apikey", "api_key", "private_key", "credential", "authorization",
}

const mask = "***REDACTED***"

// Config controls a Redactor's behavior.
type Config struct {
	Enabled       bool
	RedactionText string
}

// DefaultConfig enables redaction with the standard mask text.
func DefaultConfig() Config {
	return Config{Enabled: true, RedactionText: mask}
}

// Redactor scrubs secret-shaped text out of strings, struct-like maps,
// and string slices, such as extracted-string findings or header maps.
type Redactor struct {
	cfg Config
}

// New builds a Redactor from cfg, filling in the default mask text if unset.
func New(cfg Config) *Redactor {
	if cfg.RedactionText == "" {
		cfg.RedactionText = mask
	}
	return &Redactor{cfg: cfg}
}

// String redacts key=value and Bearer-token shaped secrets out of s.
func (r *Redactor) String(s string) string {
	if !r.cfg.Enabled {
		return s
	}
	out := s
	for _, pattern := range secretPatterns {
		out = pattern.ReplaceAllString(out, "${1}: "+r.cfg.RedactionText)
	}
	return out
}

// Strings redacts every entry of ss, such as a FileScanner's extracted
// string list or an EmailScanner's header value list.
func (r *Redactor) Strings(ss []string) []string {
	if !r.cfg.Enabled || len(ss) == 0 {
		return ss
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = r.String(s)
	}
	return out
}

// Fields redacts values of blocked field names (password, token, ...)
// wholesale and scans the rest of the string-valued fields for embedded
// secrets. Used on engine metadata maps before they're logged.
func (r *Redactor) Fields(m map[string]string) map[string]string {
	if !r.cfg.Enabled || m == nil {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isBlockedField(k) {
			out[k] = r.cfg.RedactionText
			continue
		}
		out[k] = r.String(v)
	}
	return out
}

func isBlockedField(field string) bool {
	lower := strings.ToLower(field)
	for _, blocked := range blockedFields {
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}
