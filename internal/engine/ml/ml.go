// Package ml implements the ML engine (model.EngineML): the same
// feature-engineering pipeline the original Rust service fed to an
// ONNX threat classifier and anomaly detector, driving a deterministic
// weighted scorer instead. Neither a trained model nor an ONNX runtime
// binding is available in this corpus, so the feature vector is scored
// against fixed weights rather than through a neural network; see
// DESIGN.md for the full justification.
package ml

import (
	"context"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/engine/static"
	"github.com/threatcore/analysis-core/internal/fingerprint"
	"github.com/threatcore/analysis-core/internal/model"
)

// Config controls the scorer's threshold.
type Config struct {
	// AnomalyThreshold mirrors the original's confidence_threshold: an
	// anomaly score above this flags the artifact regardless of the
	// classifier's own verdict.
	AnomalyThreshold float64
}

// DefaultConfig matches the original's typical confidence_threshold.
func DefaultConfig() Config {
	return Config{AnomalyThreshold: 0.6}
}

var suspiciousStringPatterns = []string{
	"cmd.exe", "powershell", "regedit", "taskkill", "net user",
	"bitcoin", "wallet", "ransom", "encrypt", "decrypt",
}

// Features is the feature vector extracted from an artifact's raw
// bytes, trimmed down from the original's 512-wide padded tensor to
// the subset this scorer actually weighs.
type Features struct {
	FileSize         float64
	Entropy          float64
	PackerEntropy    float64
	SectionsCount    float64
	SuspiciousStrCnt float64
	CodeComplexity   float64
}

// Engine is the ML engine.
type Engine struct {
	cfg Config
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = 0.6
	}
	return &Engine{cfg: cfg}
}

// Analyze implements the orchestrator's Engine interface.
func (e *Engine) Analyze(_ context.Context, artifact model.Artifact) (model.Detection, error) {
	start := time.Now()
	features := extractFeatures(artifact.Bytes)

	classScore, predictedClass := classify(features)
	anomalyScore := detectAnomaly(features)
	isAnomaly := anomalyScore > e.cfg.AnomalyThreshold

	isMalicious := predictedClass != "benign" || isAnomaly
	confidence := classScore
	if isAnomaly {
		confidence = (classScore + anomalyScore) / 2
	}

	verdict := model.VerdictBenign
	severity := model.SeverityInfo
	categories := make([]string, 0, 2)
	if isMalicious {
		verdict = model.VerdictSuspicious
		severity = model.SeverityMedium
		if predictedClass != "benign" {
			categories = append(categories, "ml-classification:"+predictedClass)
		}
		if isAnomaly {
			categories = append(categories, "ml-anomaly")
			if anomalyScore > 0.85 {
				severity = model.SeverityHigh
			}
		}
	}

	return model.Detection{
		EngineName: "ml_scorer",
		EngineKind: model.EngineML,
		Verdict:    verdict,
		Confidence: confidence,
		Severity:   severity,
		Categories: categories,
		Metadata: map[string]interface{}{
			"predicted_class": predictedClass,
			"class_score":     classScore,
			"anomaly_score":   anomalyScore,
			"is_anomaly":      isAnomaly,
			"features":        features,
		},
		DetectedAt:       time.Now(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func extractFeatures(b []byte) Features {
	entropy := fingerprint.Entropy(b)

	sampleSize := len(b)
	if sampleSize > 1024 {
		sampleSize = 1024
	}
	packerEntropy := fingerprint.Entropy(b[:sampleSize])

	var sectionsCount float64
	if sections, err := static.WalkPESections(b); err == nil {
		sectionsCount = float64(len(sections))
	}

	strs := static.ExtractStrings(b, 4, 256)
	suspiciousCount := countSuspicious(strs)

	return Features{
		FileSize:         float64(len(b)),
		Entropy:          entropy,
		PackerEntropy:    packerEntropy,
		SectionsCount:    sectionsCount,
		SuspiciousStrCnt: suspiciousCount,
		CodeComplexity:   codeComplexity(b),
	}
}

func countSuspicious(strs []string) float64 {
	var n float64
	for _, s := range strs {
		lower := strings.ToLower(s)
		for _, pattern := range suspiciousStringPatterns {
			if strings.Contains(lower, pattern) {
				n++
				break
			}
		}
	}
	return n
}

// codeComplexity mirrors the original's unique-byte ratio: a packed or
// encrypted blob tends toward the full 256-value alphabet, while plain
// text or simple machine code uses a narrow subset.
func codeComplexity(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var seen [256]bool
	unique := 0
	for _, c := range b {
		if !seen[c] {
			seen[c] = true
			unique++
		}
	}
	return float64(unique) / 256
}

// classify applies the fixed weights a trained classifier would have
// learned: high entropy, a packed sample, and suspicious string hits
// each push the predicted class away from benign.
func classify(f Features) (score float64, class string) {
	score = 0.1
	class = "benign"

	if f.Entropy > 7.0 {
		score += 0.3
		class = "packed"
	}
	if f.PackerEntropy > 7.2 {
		score += 0.2
		class = "packed"
	}
	if f.SuspiciousStrCnt >= 3 {
		score += 0.3
		class = "trojan"
	}
	if f.CodeComplexity > 0.9 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, class
}

// detectAnomaly scores how far the feature vector sits from a typical
// clean-file profile, standing in for the original's learned anomaly
// detector.
func detectAnomaly(f Features) float64 {
	score := 0.0
	if f.Entropy > 7.5 {
		score += 0.4
	}
	if f.SuspiciousStrCnt >= 5 {
		score += 0.4
	}
	if f.CodeComplexity > 0.95 {
		score += 0.3
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
