// Package heuristic implements the heuristic engine (C7): a static,
// pre-loaded rule set matched by regex against artifact content, with an
// optional per-rule goja script hook for custom context extraction.
package heuristic

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	"github.com/threatcore/analysis-core/internal/fingerprint"
	"github.com/threatcore/analysis-core/internal/model"
)

const contextWindow = 100

// Engine holds an atomically-swappable rule set (spec §5: "compiled rule
// sets are read-only after load; a reload replaces the reference
// atomically under an exclusive lock").
type Engine struct {
	rules atomic.Pointer[[]model.HeuristicRule]
}

// New constructs an Engine with rules (or DefaultRules if nil).
func New(rules []model.HeuristicRule) *Engine {
	e := &Engine{}
	if rules == nil {
		rules = DefaultRules()
	}
	e.rules.Store(&rules)
	return e
}

// Reload atomically replaces the active rule set.
func (e *Engine) Reload(rules []model.HeuristicRule) {
	e.rules.Store(&rules)
}

// Scan matches every applicable rule against b and returns a single
// fused Detection carrying the per-rule matches in its metadata, per
// spec §4.7's risk-score formula.
func (e *Engine) Scan(b []byte, ext string) model.Detection {
	start := time.Now()
	rules := *e.rules.Load()
	content := string(b) // lossy UTF-8 view, per spec §4.7

	var matches []model.HeuristicMatch
	for _, r := range rules {
		if !r.AppliesTo(ext) {
			continue
		}
		locs := r.Pattern.FindAllStringIndex(content, -1)
		for _, loc := range locs {
			ctx := extractContext(r, content, loc[0], loc[1])
			matches = append(matches, model.HeuristicMatch{
				RuleID:     r.ID,
				RuleName:   r.Name,
				Offset:     loc[0],
				Context:    ctx,
				Severity:   r.Severity,
				Confidence: r.Confidence,
			})
		}
	}

	score := RiskScore(matches)
	verdict := model.VerdictBenign
	if score >= 50 {
		verdict = model.VerdictMalicious
	} else if len(matches) > 0 {
		verdict = model.VerdictSuspicious
	}

	var maxSeverity model.Severity = model.SeverityInfo
	categories := make([]string, 0, len(matches))
	for _, m := range matches {
		maxSeverity = model.MaxSeverity(maxSeverity, m.Severity)
		categories = append(categories, m.RuleID)
	}

	return model.Detection{
		EngineName:       "heuristic",
		EngineKind:       model.EngineHeuristic,
		Verdict:          verdict,
		Confidence:       score / 100,
		Severity:         maxSeverity,
		Categories:       categories,
		Metadata:         map[string]interface{}{"risk_score": score, "match_count": len(matches), "matches": matches},
		DetectedAt:       time.Now(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

// RiskScore computes Σ(sev·conf)/(n·10)·100 clamped to [0,100] (spec
// §4.7). An empty match set scores 0.
func RiskScore(matches []model.HeuristicMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += float64(model.SeverityRank(m.Severity)) * m.Confidence
	}
	score := sum / (float64(len(matches)) * 10) * 100
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// extractContext returns the rule's custom extraction (via its goja
// script, if set) or the default ±contextWindow-byte window around the
// match.
func extractContext(r model.HeuristicRule, content string, start, end int) string {
	if r.ContextExtractor != "" {
		if out, err := runContextExtractor(r.ContextExtractor, content, start, end); err == nil {
			return out
		}
	}
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(content) {
		hi = len(content)
	}
	return content[lo:hi]
}

// runContextExtractor evaluates a small goja script with offset, match,
// and content bound, returning its string result.
func runContextExtractor(script, content string, start, end int) (string, error) {
	vm := goja.New()
	if err := vm.Set("offset", start); err != nil {
		return "", err
	}
	if err := vm.Set("match", content[start:end]); err != nil {
		return "", err
	}
	if err := vm.Set("content", content); err != nil {
		return "", err
	}
	v, err := vm.RunString(script)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", v.Export()), nil
}

// ExtensionOf is a thin re-export so callers only need this package plus
// the artifact's filename.
func ExtensionOf(filename string) string {
	return fingerprint.ExtensionOf(filename)
}
