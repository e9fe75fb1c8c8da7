// Package hashrep implements the hash reputation engine (C9): hash
// validation, cache lookup, cross-algorithm fingerprinting, and
// multi-source reputation querying via the reputation query layer (C5).
package hashrep

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/fingerprint"
	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/reputation"
	"github.com/threatcore/analysis-core/internal/resultcache"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

// canonicalLength maps a hash algorithm name to its expected hex length.
var canonicalLength = map[string]int{
	"md5":     32,
	"sha1":    40,
	"sha256":  64,
	"sha3256": 64,
	"blake2b": 128,
}

// weakAlgorithms records algorithms that still resolve but earn a
// warning (spec §4.9 step 2).
var weakAlgorithms = map[string]bool{"md5": true, "sha1": true}

// HashInfo identifies the hash under analysis.
type HashInfo struct {
	Algorithm string
	Value     string
}

// ValidateHash enforces spec §4.9 step 1: length matches the algorithm's
// canonical length and every character is hex.
func ValidateHash(h HashInfo) (warning string, err error) {
	alg := strings.ToLower(h.Algorithm)
	length, known := canonicalLength[alg]
	if !known {
		return "", svcerr.BadInput("unknown hash algorithm: " + h.Algorithm)
	}
	if len(h.Value) != length {
		return "", svcerr.BadInput("hash length does not match algorithm")
	}
	if _, err := hex.DecodeString(h.Value); err != nil {
		return "", svcerr.BadInput("hash is not valid hex")
	}
	if weakAlgorithms[alg] {
		warning = "weak hash algorithm: " + alg
	}
	return warning, nil
}

// SourceQuery is one configured reputation source (spec §4.9 step 5:
// VirusTotal-class, public malware repository, hybrid sandbox service,
// local database).
type SourceQuery struct {
	Name string
	Fn   reputation.Source
}

// Engine is the hash reputation engine.
type Engine struct {
	cache   resultcache.Store
	layer   *reputation.Layer
	sources []SourceQuery
}

// New constructs an Engine.
func New(cache resultcache.Store, layer *reputation.Layer, sources []SourceQuery) *Engine {
	return &Engine{cache: cache, layer: layer, sources: sources}
}

// AnalyzeHash is the C9 entry point: analyze_hash(hash_info, bytes?) ->
// AnalysisResult (spec §4.9).
func (e *Engine) AnalyzeHash(ctx context.Context, h HashInfo, optionalBytes []byte) (model.AnalysisResult, error) {
	warning, err := ValidateHash(h)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	cacheKey := strings.ToLower(h.Value)
	if cached, ok := e.cache.Lookup(ctx, cacheKey); ok {
		return *cached, nil
	}

	lookupHashes := []HashInfo{h}
	if len(optionalBytes) > 0 {
		fp, ferr := fingerprint.Compute(optionalBytes)
		if ferr == nil {
			lookupHashes = append(lookupHashes,
				HashInfo{Algorithm: "md5", Value: fp.MD5},
				HashInfo{Algorithm: "sha1", Value: fp.SHA1},
				HashInfo{Algorithm: "sha256", Value: fp.SHA256},
				HashInfo{Algorithm: "sha3256", Value: fp.SHA3256},
				HashInfo{Algorithm: "blake2b", Value: fp.BLAKE2b},
			)
		}
	}

	var reps []model.Reputation
	for _, src := range e.sources {
		for _, lh := range lookupHashes {
			rep, qerr := e.layer.Query(ctx, src.Name, src.Fn)
			if qerr != nil {
				continue
			}
			_ = lh
			reps = append(reps, rep)
			break
		}
	}

	consensus := reputation.Fuse(reps)
	detections := make([]model.Detection, 0, len(reps)+1)
	for _, r := range reps {
		detections = append(detections, reputationToDetection(r))
	}
	detections = append(detections, consensus)

	if warning != "" {
		consensus.Metadata["warning"] = warning
	}

	now := time.Now()
	result := model.AnalysisResult{
		Detections:          detections,
		ConsensusVerdict:    consensus.Verdict,
		ConsensusConfidence: consensus.Confidence,
		ConsensusSeverity:   model.SeverityInfo,
		StartedAt:           now,
		CompletedAt:         &now,
		Status:              model.StatusCompleted,
	}

	_ = e.cache.StoreResult(ctx, cacheKey, result, 0)
	return result, nil
}

// reputationToDetection maps a single source's Reputation into the
// per-source Detection the orchestrator also sees (spec §4.9
// response-mapping rules).
func reputationToDetection(r model.Reputation) model.Detection {
	return model.Detection{
		EngineName:       r.Source,
		EngineKind:       model.EngineHash,
		Verdict:          r.Verdict,
		Confidence:       r.Confidence,
		Severity:         severityFor(r.Verdict),
		Categories:       r.ThreatTypes,
		Metadata:         r.Metadata,
		DetectedAt:       time.Now(),
		ProcessingTimeMS: r.QueryTimeMS,
	}
}

func severityFor(v model.Verdict) model.Severity {
	switch v {
	case model.VerdictMalicious:
		return model.SeverityHigh
	case model.VerdictSuspicious:
		return model.SeverityMedium
	case model.VerdictBenign:
		return model.SeverityInfo
	default:
		return model.SeverityInfo
	}
}

// ClassifyVendorCounts maps a per-source vendor-style response (malicious
// count / suspicious count / total engines) to a Reputation per the
// spec §4.9 response-mapping table.
func ClassifyVendorCounts(source string, malicious, suspicious, totalEngines int, reliability float64) model.Reputation {
	switch {
	case malicious > 0:
		ratio := float64(malicious) / float64(max(totalEngines, 1))
		return model.Reputation{
			Source: source, Verdict: model.VerdictMalicious,
			Confidence: clamp01(0.5 + ratio*0.5), ReliabilityScore: reliability,
		}
	case suspicious > 0:
		return model.Reputation{Source: source, Verdict: model.VerdictSuspicious, Confidence: 0.5, ReliabilityScore: reliability}
	case totalEngines > 0:
		return model.Reputation{Source: source, Verdict: model.VerdictBenign, Confidence: 0.8, ReliabilityScore: reliability}
	default:
		return model.Reputation{Source: source, Verdict: model.VerdictUnknown, Confidence: 0.1, ReliabilityScore: reliability}
	}
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
