// Package file implements the FileScanner member of the scanner family
// (C11): file-type detection, entropy, string extraction, embedded-file
// detection, packer detection, and type-specific heuristics layered on
// top of the static engine's primitives.
package file

import (
	"fmt"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/engine/static"
	"github.com/threatcore/analysis-core/internal/fingerprint"
	"github.com/threatcore/analysis-core/internal/model"
)

// Config controls the FileScanner's thresholds.
type Config struct {
	EntropyThreshold float64
	MinStringLength  int
	MaxStringLength  int
}

// DefaultConfig mirrors the static engine's defaults (spec §4.11 shares
// the same entropy/string thresholds as §4.6).
func DefaultConfig() Config {
	return Config{EntropyThreshold: 7.0, MinStringLength: 4, MaxStringLength: 256}
}

var executableAPIs = []string{"GetProcAddress", "LoadLibrary", "WSASocket", "connect", "send", "recv"}
var scriptMarkers = []string{"eval(", "exec(", "Invoke-Expression", "wget ", "curl ", "powershell -enc"}
var officeMacroMarkers = []string{"VBA", "AutoOpen", "Document_Open", "Shell(", "CreateObject"}

// Scanner is the FileScanner.
type Scanner struct {
	cfg Config
}

// New constructs a Scanner.
func New(cfg Config) *Scanner {
	if cfg.EntropyThreshold <= 0 {
		cfg.EntropyThreshold = 7.0
	}
	if cfg.MinStringLength <= 0 {
		cfg.MinStringLength = 4
	}
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = 256
	}
	return &Scanner{cfg: cfg}
}

// Scan inspects the raw bytes of a file-shaped artifact and produces a
// ScanResult carrying type-specific findings.
func (s *Scanner) Scan(b []byte, filename string) model.ScanResult {
	start := time.Now()
	var findings []model.Finding

	detected := fingerprint.DetectType(b)
	ent := fingerprint.Entropy(b)
	strs := static.ExtractStrings(b, s.cfg.MinStringLength, s.cfg.MaxStringLength)
	embedded := static.FindEmbeddedArtifacts(b)

	if ent > s.cfg.EntropyThreshold {
		findings = append(findings, model.Finding{
			Category:    model.FindingSuspicious,
			Title:       "high entropy content",
			Description: "file entropy exceeds the packed/encrypted threshold",
			Severity:    model.SeverityMedium,
			Evidence:    []string{formatEntropy(ent)},
		})
	}

	if len(embedded) > 0 {
		findings = append(findings, model.Finding{
			Category:    model.FindingSuspicious,
			Title:       "embedded artifact signature",
			Description: "a secondary file signature was found past the header region",
			Severity:    model.SeverityMedium,
			Evidence:    evidenceForEmbedded(embedded),
		})
	}

	switch detected {
	case model.TypePE, model.TypeELF:
		if hits := containsAny(strs, executableAPIs); len(hits) > 0 {
			findings = append(findings, model.Finding{
				Category:    model.FindingSuspicious,
				Title:       "suspicious API references",
				Description: "executable references APIs commonly used for process injection or network C2",
				Severity:    model.SeverityMedium,
				Evidence:    hits,
			})
		}
		sections, err := static.WalkPESections(b)
		if err == nil && static.IsLikelyPacked(sections, s.cfg.EntropyThreshold) {
			findings = append(findings, model.Finding{
				Category:    model.FindingSuspicious,
				Title:       "likely packed executable",
				Description: "section layout or entropy is consistent with packing",
				Severity:    model.SeverityHigh,
			})
		}
	case model.TypeScript:
		if hits := containsAny(strs, scriptMarkers); len(hits) > 0 {
			findings = append(findings, model.Finding{
				Category:    model.FindingSuspicious,
				Title:       "suspicious script constructs",
				Description: "script contains dynamic-evaluation or download primitives",
				Severity:    model.SeverityMedium,
				Evidence:    hits,
			})
		}
	case model.TypeOffice:
		if hits := containsAny(strs, officeMacroMarkers); len(hits) > 0 {
			findings = append(findings, model.Finding{
				Category:    model.FindingMalware,
				Title:       "VBA macro indicators",
				Description: "document contains macro auto-execution or shell-spawning constructs",
				Severity:    model.SeverityHigh,
				Evidence:    hits,
			})
		}
		if hasEmbeddedMZ(embedded) {
			findings = append(findings, model.Finding{
				Category:    model.FindingMalware,
				Title:       "embedded executable in document",
				Description: "an MZ header was found embedded in a document container",
				Severity:    model.SeverityCritical,
			})
		}
	}

	return model.ScanResult{
		Findings:       findings,
		Verdict:        verdictFor(findings),
		ScanDurationMS: time.Since(start).Milliseconds(),
		Metadata: map[string]interface{}{
			"detected_type": detected,
			"entropy":       ent,
			"string_count":  len(strs),
		},
	}
}

func verdictFor(findings []model.Finding) model.Verdict {
	if len(findings) == 0 {
		return model.VerdictBenign
	}
	max := model.SeverityInfo
	for _, f := range findings {
		max = model.MaxSeverity(max, f.Severity)
	}
	switch {
	case max == model.SeverityCritical || max == model.SeverityHigh:
		return model.VerdictMalicious
	default:
		return model.VerdictSuspicious
	}
}

func containsAny(haystack []string, needles []string) []string {
	var hits []string
	seen := make(map[string]bool)
	for _, s := range haystack {
		for _, n := range needles {
			if strings.Contains(s, n) && !seen[n] {
				seen[n] = true
				hits = append(hits, n)
			}
		}
	}
	return hits
}

func evidenceForEmbedded(embedded []static.EmbeddedArtifact) []string {
	var out []string
	for _, e := range embedded {
		out = append(out, e.Signature)
	}
	return out
}

func hasEmbeddedMZ(embedded []static.EmbeddedArtifact) bool {
	for _, e := range embedded {
		if e.Signature == "4d5a" {
			return true
		}
	}
	return false
}

func formatEntropy(e float64) string {
	return fmt.Sprintf("entropy=%.3f", e)
}
