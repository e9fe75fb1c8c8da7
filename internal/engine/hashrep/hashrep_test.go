package hashrep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/breaker"
	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/ratelimit"
	"github.com/threatcore/analysis-core/internal/reputation"
	"github.com/threatcore/analysis-core/internal/resultcache"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

func TestValidateHash(t *testing.T) {
	_, err := ValidateHash(HashInfo{Algorithm: "sha256", Value: "deadbeef"})
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.CodeBadInput))

	valid := HashInfo{Algorithm: "sha256", Value: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"[:64]}
	warning, err := ValidateHash(valid)
	require.NoError(t, err)
	assert.Empty(t, warning)
}

func TestValidateHash_WeakAlgorithmWarns(t *testing.T) {
	warning, err := ValidateHash(HashInfo{Algorithm: "md5", Value: "d41d8cd98f00b204e9800998ecf8427e"})
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
}

func TestAnalyzeHash_CacheHit(t *testing.T) {
	cache := resultcache.New(resultcache.Config{DefaultTTL: time.Minute})
	layer := reputation.New(breaker.NewRegistry(breaker.DefaultConfig()), ratelimit.NewRegistry(600), reputation.DefaultConfig())

	hash := "d41d8cd98f00b204e9800998ecf8427e"
	ctx := context.Background()
	want := model.AnalysisResult{ConsensusVerdict: model.VerdictMalicious, ConsensusConfidence: 0.9}
	require.NoError(t, cache.StoreResult(ctx, hash, want, 0))

	e := New(cache, layer, nil)
	got, err := e.AnalyzeHash(ctx, HashInfo{Algorithm: "md5", Value: hash}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMalicious, got.ConsensusVerdict)
}

func TestAnalyzeHash_QueriesSources(t *testing.T) {
	cache := resultcache.New(resultcache.Config{DefaultTTL: time.Minute})
	layer := reputation.New(breaker.NewRegistry(breaker.DefaultConfig()), ratelimit.NewRegistry(600), reputation.DefaultConfig())

	sources := []SourceQuery{
		{Name: "vt-class", Fn: func(ctx context.Context) (model.Reputation, error) {
			return ClassifyVendorCounts("vt-class", 3, 0, 70, 0.9), nil
		}},
	}
	e := New(cache, layer, sources)

	hash := "5d41402abc4b2a76b9719d911017c592"
	got, err := e.AnalyzeHash(context.Background(), HashInfo{Algorithm: "md5", Value: hash}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMalicious, got.ConsensusVerdict)
	assert.Len(t, got.Detections, 2) // one per-source + one consensus
}

func TestClassifyVendorCounts(t *testing.T) {
	assert.Equal(t, model.VerdictUnknown, ClassifyVendorCounts("x", 0, 0, 0, 0.5).Verdict)
	assert.Equal(t, model.VerdictBenign, ClassifyVendorCounts("x", 0, 0, 60, 0.5).Verdict)
	assert.Equal(t, model.VerdictSuspicious, ClassifyVendorCounts("x", 0, 2, 60, 0.5).Verdict)
	assert.Equal(t, model.VerdictMalicious, ClassifyVendorCounts("x", 5, 0, 60, 0.5).Verdict)
}
