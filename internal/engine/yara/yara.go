// Package yara implements the YARA-style engine (C8): a simplified rule
// loader and scanner inspired by YARA's rule-block syntax. Rules are
// parsed from `.yara`/`.yar` files by a balanced-brace scan starting at
// each `rule ` token, compiled into a single alternation regexp per
// rule from its string-literal definitions, and matched against
// artifact bytes.
package yara

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

var ruleHeaderRE = regexp.MustCompile(`\brule\s+([A-Za-z_][A-Za-z0-9_]*)\s*(:([^{]*))?\{`)
var metaFieldRE = regexp.MustCompile(`(?i)(\w+)\s*=\s*"([^"]*)"`)
var stringLiteralRE = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// Ruleset is the active compiled rule set plus its stable hash.
type Ruleset struct {
	Rules     []model.YaraRule
	RulesHash string
}

// LoadDir recursively loads and parses every .yara/.yar file under dir.
func LoadDir(dir string) (*Ruleset, error) {
	var allRules []model.YaraRule
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yara" && ext != ".yar" {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		namespace := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		rules, parseErr := ParseRules(string(data), namespace)
		if parseErr != nil {
			return parseErr
		}
		allRules = append(allRules, rules...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Ruleset{Rules: allRules, RulesHash: hashRules(allRules)}, nil
}

// ParseRules parses every `rule NAME [: tags] { ... }` block in text,
// using a balanced-brace scan that ignores braces inside string
// literals. A block whose braces never balance is rejected rather than
// silently mis-parsed; a "rule" token inside a string literal is masked
// out and never starts a block.
func ParseRules(text string, namespace string) ([]model.YaraRule, error) {
	mask := maskStringLiterals(text)
	var rules []model.YaraRule

	searchFrom := 0
	for {
		loc := ruleHeaderRE.FindStringSubmatchIndex(mask[searchFrom:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += searchFrom
			}
		}

		name := text[loc[2]:loc[3]]
		var tags []string
		if loc[6] >= 0 {
			for _, t := range strings.Fields(text[loc[6]:loc[7]]) {
				tags = append(tags, t)
			}
		}

		openBrace := loc[1] - 1 // index of '{'
		closeBrace := findMatchingBrace(mask, openBrace)
		if closeBrace < 0 {
			return nil, svcerr.BadInput("unbalanced braces in rule " + name)
		}

		body := text[openBrace+1 : closeBrace]
		meta := parseMeta(body)
		pattern := compileBodyPattern(body)
		enabled := !strings.EqualFold(meta["enabled"], "false")

		rules = append(rules, model.YaraRule{
			Name:      name,
			Namespace: namespace,
			Pattern:   pattern,
			RawBody:   text[loc[0]:closeBrace+1],
			Tags:      tags,
			Meta:      meta,
			Enabled:   enabled,
		})

		searchFrom = closeBrace + 1
		if searchFrom >= len(mask) {
			break
		}
	}
	return rules, nil
}

// maskStringLiterals returns a copy of text with the contents of every
// quoted string literal replaced by spaces, preserving length and
// offsets, so brace/token scanning never looks inside a string.
func maskStringLiterals(text string) string {
	b := []byte(text)
	inString := false
	escaped := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
				continue
			}
			if b[i] != '\n' {
				b[i] = ' '
			}
			continue
		}
		if c == '"' {
			inString = true
		}
	}
	return string(b)
}

// findMatchingBrace returns the index of the brace matching the '{' at
// openIdx, scanning the brace-safe mask, or -1 if unbalanced.
func findMatchingBrace(mask string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(mask); i++ {
		switch mask[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseMeta(body string) map[string]string {
	idx := strings.Index(strings.ToLower(body), "meta:")
	if idx < 0 {
		return map[string]string{}
	}
	section := body[idx+len("meta:"):]
	if end := nextSectionIndex(section); end >= 0 {
		section = section[:end]
	}
	meta := make(map[string]string)
	for _, m := range metaFieldRE.FindAllStringSubmatch(section, -1) {
		meta[strings.ToLower(m[1])] = m[2]
	}
	return meta
}

func nextSectionIndex(s string) int {
	lower := strings.ToLower(s)
	best := -1
	for _, kw := range []string{"strings:", "condition:"} {
		if i := strings.Index(lower, kw); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// compileBodyPattern builds an alternation regexp from every string
// literal defined in the rule's strings: section (or the whole body, if
// there is no explicit section). Rules with no string literals have no
// compiled pattern and never match.
func compileBodyPattern(body string) *regexp.Regexp {
	section := body
	lower := strings.ToLower(body)
	if i := strings.Index(lower, "strings:"); i >= 0 {
		section = body[i+len("strings:"):]
		if end := strings.Index(strings.ToLower(section), "condition:"); end >= 0 {
			section = section[:end]
		}
	}

	var alternatives []string
	for _, m := range stringLiteralRE.FindAllStringSubmatch(section, -1) {
		alternatives = append(alternatives, regexp.QuoteMeta(m[1]))
	}
	if len(alternatives) == 0 {
		return nil
	}
	return regexp.MustCompile(strings.Join(alternatives, "|"))
}

func hashRules(rules []model.YaraRule) string {
	bodies := make([]string, 0, len(rules))
	for _, r := range rules {
		bodies = append(bodies, r.RawBody)
	}
	sort.Strings(bodies)
	h := sha256.New()
	for _, b := range bodies {
		_, _ = h.Write([]byte(b))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Scanner scans artifact bytes against an active Ruleset.
type Scanner struct {
	ruleset *Ruleset
}

// NewScanner constructs a Scanner.
func NewScanner(ruleset *Ruleset) *Scanner {
	return &Scanner{ruleset: ruleset}
}

// ScanWithTimeout scans b against the active enabled rules, yielding
// control between rules so a caller-imposed deadline can cancel the
// scan (spec §4.8's per-rule-boundary suspension point).
func (s *Scanner) ScanWithTimeout(ctx deadliner, b []byte) ([]model.YaraMatch, error) {
	var matches []model.YaraMatch
	for _, r := range s.ruleset.Rules {
		if !r.Enabled || r.Pattern == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, svcerr.Timeout("yara scan deadline exceeded")
		default:
		}
		for _, loc := range r.Pattern.FindAllIndex(b, -1) {
			matches = append(matches, model.YaraMatch{
				RuleName:  r.Name,
				Namespace: r.Namespace,
				Offset:    loc[0],
				Length:    loc[1] - loc[0],
				Content:   b[loc[0]:loc[1]],
				Tags:      r.Tags,
			})
		}
	}
	return matches, nil
}

// deadliner is the minimal context.Context surface ScanWithTimeout needs.
type deadliner interface {
	Done() <-chan struct{}
}

// DefaultScanTimeout is the spec §6 yara.timeout_seconds default.
const DefaultScanTimeout = 5 * time.Second
