package model

import "regexp"

// HeuristicRule is one entry of the heuristic engine's (C7) pre-loaded
// rule set. Rules are immutable once loaded; a reload replaces the whole
// slice under an atomic pointer swap.
type HeuristicRule struct {
	ID                  string
	Name                string
	Pattern             *regexp.Regexp
	Severity            Severity
	Confidence          float64
	ApplicableFileTypes []string // glob-ish extensions, or "*"
	// ContextExtractor, if non-empty, is a small goja script evaluated
	// with `offset`, `match`, and `content` bound; it returns a string
	// used in place of the default ±100-byte window. Optional.
	ContextExtractor string
}

// AppliesTo reports whether the rule is gated in for the given file
// extension (without leading dot, lower-cased) per spec §4.7.
func (r HeuristicRule) AppliesTo(ext string) bool {
	for _, t := range r.ApplicableFileTypes {
		if t == "*" || t == ext {
			return true
		}
	}
	return false
}

// HeuristicMatch is one occurrence of a HeuristicRule against artifact
// content.
type HeuristicMatch struct {
	RuleID     string
	RuleName   string
	Offset     int
	Context    string
	Severity   Severity
	Confidence float64
}

// YaraRule is a single parsed rule block from a .yara/.yar file.
type YaraRule struct {
	Name      string
	Namespace string
	Pattern   *regexp.Regexp
	RawBody   string
	Tags      []string
	Meta      map[string]string
	Enabled   bool
	Priority  int
}

// YaraMatch is a single match produced by scanning bytes against the
// active YARA-style rule set.
type YaraMatch struct {
	RuleName  string
	Namespace string
	Offset    int
	Length    int
	Content   []byte
	Tags      []string
}
