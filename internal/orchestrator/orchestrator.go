package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/threatcore/analysis-core/internal/fingerprint"
	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/obslog"
	"github.com/threatcore/analysis-core/internal/resultcache"
	"github.com/threatcore/analysis-core/internal/svcerr"
	"github.com/threatcore/analysis-core/internal/version"
)

// Config controls the orchestrator's concurrency and size limits.
type Config struct {
	MaxConcurrentAnalyses int
	MaxArtifactSize       int64
	EngineTimeout         time.Duration
	CacheTTL              time.Duration
}

// DefaultConfig matches spec §6/§5 defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentAnalyses: 10,
		MaxArtifactSize:       200 << 20,
		EngineTimeout:         30 * time.Second,
		CacheTTL:              60 * time.Minute,
	}
}

// Orchestrator runs the C12 analyze pipeline.
type Orchestrator struct {
	registry Registry
	cache    resultcache.Store
	weights  map[string]float64 // per-engine reputation weight, default 1.0
	cfg      Config
	log      *obslog.Logger
}

// New constructs an Orchestrator.
func New(registry Registry, cache resultcache.Store, weights map[string]float64, cfg Config, log *obslog.Logger) *Orchestrator {
	if cfg.MaxConcurrentAnalyses <= 0 {
		cfg.MaxConcurrentAnalyses = 10
	}
	if cfg.MaxArtifactSize <= 0 {
		cfg.MaxArtifactSize = 200 << 20
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Minute
	}
	if weights == nil {
		weights = map[string]float64{}
	}
	return &Orchestrator{registry: registry, cache: cache, weights: weights, cfg: cfg, log: log}
}

// task is one (engine, timeout, weight) unit of work (spec §4.12 step 4).
type task struct {
	kind   model.EngineKind
	engine Engine
	weight float64
}

// Analyze runs the full C12 pipeline for job against artifact.
func (o *Orchestrator) Analyze(ctx context.Context, artifact model.Artifact, job *model.Job) (model.AnalysisResult, error) {
	fp, err := fingerprint.Compute(artifact.Bytes)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	if fp.Size > o.cfg.MaxArtifactSize {
		return model.AnalysisResult{}, svcerr.TooLarge(fmt.Sprintf("artifact size %d exceeds absolute ceiling %d", fp.Size, o.cfg.MaxArtifactSize))
	}

	cacheKey := fp.CanonicalKey()
	if cached, ok := o.cache.Lookup(ctx, cacheKey); ok {
		clone := cached.Clone()
		clone.Tags = append(clone.Tags, "from-cache")
		return clone, nil
	}

	result := model.AnalysisResult{
		AnalysisID:   uuid.NewString(),
		SubmissionID: job.ID,
		Fingerprint:  fp,
		Status:       model.StatusInProgress,
		StartedAt:    time.Now().UTC(),
	}

	tasks := o.buildTasks()
	detections, cancelled := o.runTasks(ctx, tasks, artifact)
	if cancelled {
		result.Status = model.StatusFailed
		result.ErrorMessage = "cancelled"
		return result, nil
	}

	result.Detections = detections
	verdict, confidence, severity := fuse(detections, o.weights)
	result.ConsensusVerdict = verdict
	result.ConsensusConfidence = confidence
	result.ConsensusSeverity = severity

	now := time.Now().UTC()
	result.CompletedAt = &now
	result.Status = model.StatusCompleted
	elapsed := now.Sub(result.StartedAt).Milliseconds()
	result.ProcessingTimeMS = &elapsed
	result.Tags = append(result.Tags, version.EngineTag())

	if err := o.cache.StoreResult(ctx, cacheKey, result, o.cfg.CacheTTL); err != nil && o.log != nil {
		o.log.WithError(err).Warn("failed to write analysis result to cache")
	}

	return result, nil
}

func (o *Orchestrator) buildTasks() []task {
	var tasks []task
	for _, kind := range o.registry.Enabled() {
		weight := o.weights[string(kind)]
		if weight <= 0 {
			weight = 1.0
		}
		tasks = append(tasks, task{kind: kind, engine: o.registry[kind], weight: weight})
	}
	return tasks
}

// runTasks dispatches tasks under bounded parallelism, returning a
// Detection per task. Engine failures are converted to Unknown
// detections rather than aborting the batch; an upstream context
// cancellation discards all partial results instead.
func (o *Orchestrator) runTasks(ctx context.Context, tasks []task, artifact model.Artifact) ([]model.Detection, bool) {
	sem := make(chan struct{}, o.cfg.MaxConcurrentAnalyses)
	var wg sync.WaitGroup
	detections := make([]model.Detection, len(tasks))
	var errs *multierror.Error
	var mu sync.Mutex

	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			taskCtx, cancel := context.WithTimeout(ctx, o.cfg.EngineTimeout)
			defer cancel()

			det, err := t.engine.Analyze(taskCtx, artifact)
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", t.kind, err))
				mu.Unlock()
				det = model.Detection{
					EngineName: string(t.kind),
					EngineKind: t.kind,
					Verdict:    model.VerdictUnknown,
					DetectedAt: time.Now().UTC(),
					Error:      err.Error(),
				}
			}
			detections[i] = det
		}(i, t)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, true
	}
	if errs != nil && o.log != nil {
		o.log.WithError(errs).Debug("one or more engines failed during analysis")
	}
	return detections, false
}

// fuse implements the spec §4.12 step 7 consensus algorithm: weighted
// verdict vote with a fixed tie-break order, confidence as the
// weighted mean, and severity as the max across concurring detections.
func fuse(detections []model.Detection, weights map[string]float64) (model.Verdict, float64, model.Severity) {
	verdictWeight := map[model.Verdict]float64{}
	var totalWeight, weightedConfidence float64

	for _, d := range detections {
		w := weights[d.EngineName]
		if w <= 0 {
			w = 1.0
		}
		verdictWeight[d.Verdict] += w
		totalWeight += w
		weightedConfidence += w * d.Confidence
	}

	consensus := model.VerdictUnknown
	bestWeight := -1.0
	for v, w := range verdictWeight {
		if w > bestWeight || (w == bestWeight && model.RankOf(v) > model.RankOf(consensus)) {
			bestWeight = w
			consensus = v
		}
	}

	confidence := 0.1
	if totalWeight > 0 {
		confidence = weightedConfidence / totalWeight
	}

	severity := model.SeverityInfo
	for _, d := range detections {
		if d.Verdict == consensus {
			severity = model.MaxSeverity(severity, d.Severity)
		}
	}

	return consensus, confidence, severity
}
