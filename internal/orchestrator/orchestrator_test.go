package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/resultcache"
)

func benignEngine(name string) EngineFunc {
	return func(ctx context.Context, artifact model.Artifact) (model.Detection, error) {
		return model.Detection{EngineName: name, Verdict: model.VerdictBenign, Confidence: 0.9, Severity: model.SeverityInfo}, nil
	}
}

func maliciousEngine(name string) EngineFunc {
	return func(ctx context.Context, artifact model.Artifact) (model.Detection, error) {
		return model.Detection{EngineName: name, Verdict: model.VerdictMalicious, Confidence: 0.95, Severity: model.SeverityCritical}, nil
	}
}

func failingEngine(name string) EngineFunc {
	return func(ctx context.Context, artifact model.Artifact) (model.Detection, error) {
		return model.Detection{}, errors.New("engine exploded")
	}
}

func TestAnalyze_AllBenignYieldsBenignConsensus(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{
		model.EngineStatic:    benignEngine("static"),
		model.EngineHeuristic: benignEngine("heuristic"),
	})
	cache := resultcache.New(resultcache.Config{})
	o := New(registry, cache, nil, DefaultConfig(), nil)

	result, err := o.Analyze(context.Background(), model.Artifact{Bytes: []byte("hello world")}, &model.Job{ID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictBenign, result.ConsensusVerdict)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Len(t, result.Detections, 2)
}

func TestAnalyze_MaliciousBeatsTie(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{
		model.EngineStatic: maliciousEngine("static"),
		model.EngineYara:   benignEngine("yara"),
	})
	cache := resultcache.New(resultcache.Config{})
	o := New(registry, cache, nil, DefaultConfig(), nil)

	result, err := o.Analyze(context.Background(), model.Artifact{Bytes: []byte("payload bytes")}, &model.Job{ID: "job-2"})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMalicious, result.ConsensusVerdict)
	assert.Equal(t, model.SeverityCritical, result.ConsensusSeverity)
}

func TestAnalyze_EngineFailureBecomesUnknownDetection(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{
		model.EngineStatic: failingEngine("static"),
	})
	cache := resultcache.New(resultcache.Config{})
	o := New(registry, cache, nil, DefaultConfig(), nil)

	result, err := o.Analyze(context.Background(), model.Artifact{Bytes: []byte("data")}, &model.Job{ID: "job-3"})
	require.NoError(t, err)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, model.VerdictUnknown, result.Detections[0].Verdict)
	assert.NotEmpty(t, result.Detections[0].Error)
}

func TestAnalyze_CacheHitReturnsTaggedClone(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{model.EngineStatic: benignEngine("static")})
	cache := resultcache.New(resultcache.Config{})
	o := New(registry, cache, nil, DefaultConfig(), nil)

	artifact := model.Artifact{Bytes: []byte("cache me")}
	first, err := o.Analyze(context.Background(), artifact, &model.Job{ID: "job-4"})
	require.NoError(t, err)

	second, err := o.Analyze(context.Background(), artifact, &model.Job{ID: "job-5"})
	require.NoError(t, err)
	assert.Equal(t, first.ConsensusVerdict, second.ConsensusVerdict)
	assert.Contains(t, second.Tags, "from-cache")
}

func TestAnalyze_ArtifactOverSizeCeilingIsRejected(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{model.EngineStatic: benignEngine("static")})
	cache := resultcache.New(resultcache.Config{})
	cfg := DefaultConfig()
	cfg.MaxArtifactSize = 4
	o := New(registry, cache, nil, cfg, nil)

	_, err := o.Analyze(context.Background(), model.Artifact{Bytes: []byte("way too large for the ceiling")}, &model.Job{ID: "job-6"})
	require.Error(t, err)
}

func TestAnalyze_EmptyArtifactCompletesWithZeroEntropy(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{model.EngineStatic: benignEngine("static")})
	cache := resultcache.New(resultcache.Config{})
	o := New(registry, cache, nil, DefaultConfig(), nil)

	result, err := o.Analyze(context.Background(), model.Artifact{Bytes: nil}, &model.Job{ID: "job-7"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, 0.0, result.Fingerprint.Entropy)
	assert.Equal(t, int64(0), result.Fingerprint.Size)
}

func TestAnalyze_CancelledContextFailsTheBatch(t *testing.T) {
	registry := NewRegistry(map[model.EngineKind]Engine{
		model.EngineStatic: EngineFunc(func(ctx context.Context, artifact model.Artifact) (model.Detection, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return model.Detection{Verdict: model.VerdictBenign}, nil
			case <-ctx.Done():
				return model.Detection{}, ctx.Err()
			}
		}),
	})
	cache := resultcache.New(resultcache.Config{})
	o := New(registry, cache, nil, DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result, err := o.Analyze(ctx, model.Artifact{Bytes: []byte("cancel me")}, &model.Job{ID: "job-7"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Equal(t, "cancelled", result.ErrorMessage)
}
