// Package reputation implements the reputation query layer (C5): a
// retry-and-backoff wrapper over external reputation sources that sits
// behind the per-source breaker and rate limiter, plus the weighted
// fusion algorithm spec §4.5 describes.
package reputation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/threatcore/analysis-core/internal/breaker"
	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/ratelimit"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

// Source produces a Reputation for whatever identity (hash, URL, domain)
// the caller closed over.
type Source func(ctx context.Context) (model.Reputation, error)

// Config controls retry behaviour; breaker/rate-limit thresholds live in
// their own packages' configs.
type Config struct {
	RetryAttempts int
	RetryDelay    time.Duration
	QueryTimeout  time.Duration
}

// DefaultConfig returns the spec §4.5/§6 defaults.
func DefaultConfig() Config {
	return Config{RetryAttempts: 3, RetryDelay: time.Second, QueryTimeout: 5 * time.Second}
}

// Layer dispatches queries to sources, each guarded by its own breaker
// and rate limiter.
type Layer struct {
	breakers *breaker.Registry
	limiters *ratelimit.Registry
	cfg      Config
}

// New constructs a Layer.
func New(breakers *breaker.Registry, limiters *ratelimit.Registry, cfg Config) *Layer {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	return &Layer{breakers: breakers, limiters: limiters, cfg: cfg}
}

// Query runs the spec §4.5 steps for a single source: breaker
// availability check, rate-limit acquire, timeout-bounded invocation,
// and retry-with-backoff on failure.
func (l *Layer) Query(ctx context.Context, sourceID string, fn Source) (model.Reputation, error) {
	b := l.breakers.For(sourceID)
	if !b.IsAvailable() {
		return model.Reputation{}, svcerr.SourceUnavailable(sourceID)
	}

	lim := l.limiters.For(sourceID)
	if err := lim.Acquire(ctx); err != nil {
		return model.Reputation{}, svcerr.RateLimited("rate limit wait cancelled").WithDetails("source", sourceID)
	}

	var result model.Reputation
	attempt := 0
	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
		defer cancel()

		execErr := b.Execute(callCtx, func() error {
			start := time.Now()
			rep, err := fn(callCtx)
			rep.QueryTimeMS = time.Since(start).Milliseconds()
			if err != nil {
				return err
			}
			result = rep
			return nil
		})
		return execErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.RetryDelay
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	withMax := backoff.WithMaxRetries(bo, uint64(l.cfg.RetryAttempts-1))
	withCtx := backoff.WithContext(withMax, ctx)

	if err := backoff.Retry(operation, withCtx); err != nil {
		return model.Reputation{}, svcerr.Wrap(svcerr.CodeSourceUnavailable, "reputation query exhausted retries", err).WithDetails("source", sourceID).WithDetails("attempts", attempt)
	}
	return result, nil
}

// minReliability is substituted when the combined reliability of every
// source is zero, to avoid dividing by zero in WeightedConfidence.
const minReliability = 0.1

// WeightedConfidence computes Σ(conf·reliability)/Σ(reliability), or 0.1
// when the denominator is zero (spec §4.5).
func WeightedConfidence(reps []model.Reputation) float64 {
	var num, den float64
	for _, r := range reps {
		num += r.Confidence * r.ReliabilityScore
		den += r.ReliabilityScore
	}
	if den == 0 {
		return minReliability
	}
	return num / den
}

// FuseVerdict decides the consensus verdict by summed reliability per
// verdict, highest total wins, ties broken Malicious > Suspicious >
// Benign > Unknown (spec §4.5).
func FuseVerdict(reps []model.Reputation) model.Verdict {
	totals := make(map[model.Verdict]float64)
	for _, r := range reps {
		totals[r.Verdict] += r.ReliabilityScore
	}
	if len(totals) == 0 {
		return model.VerdictUnknown
	}

	best := model.VerdictUnknown
	bestScore := -1.0
	for v, score := range totals {
		if score > bestScore || (score == bestScore && model.RankOf(v) > model.RankOf(best)) {
			best = v
			bestScore = score
		}
	}
	return best
}

// Fuse produces the synthetic "consensus" Detection summarizing reps, in
// addition to whatever per-source detections the caller already built.
func Fuse(reps []model.Reputation) model.Detection {
	verdict := FuseVerdict(reps)
	confidence := WeightedConfidence(reps)

	var categories []string
	seen := make(map[string]bool)
	for _, r := range reps {
		for _, t := range r.ThreatTypes {
			if !seen[t] {
				seen[t] = true
				categories = append(categories, t)
			}
		}
	}

	return model.Detection{
		EngineName: "reputation-consensus",
		EngineKind: model.EngineHash,
		Verdict:    verdict,
		Confidence: confidence,
		Categories: categories,
		DetectedAt: time.Now(),
		Metadata:   map[string]interface{}{"source_count": len(reps)},
	}
}
