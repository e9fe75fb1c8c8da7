package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/breaker"
	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/ratelimit"
)

func newLayer() *Layer {
	return New(
		breaker.NewRegistry(breaker.Config{Threshold: 2, Cooldown: 20 * time.Millisecond}),
		ratelimit.NewRegistry(600),
		Config{RetryAttempts: 2, RetryDelay: time.Millisecond, QueryTimeout: time.Second},
	)
}

func TestLayer_QuerySucceeds(t *testing.T) {
	l := newLayer()
	rep, err := l.Query(context.Background(), "src", func(ctx context.Context) (model.Reputation, error) {
		return model.Reputation{Source: "src", Verdict: model.VerdictMalicious, Confidence: 0.9, ReliabilityScore: 0.8}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMalicious, rep.Verdict)
}

func TestLayer_RetriesThenFails(t *testing.T) {
	l := newLayer()
	calls := 0
	_, err := l.Query(context.Background(), "src", func(ctx context.Context) (model.Reputation, error) {
		calls++
		return model.Reputation{}, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestWeightedConfidence_EmptyDefaultsToPointOne(t *testing.T) {
	assert.Equal(t, 0.1, WeightedConfidence(nil))
}

func TestWeightedConfidence_Computed(t *testing.T) {
	reps := []model.Reputation{
		{Confidence: 1.0, ReliabilityScore: 1.0},
		{Confidence: 0.0, ReliabilityScore: 1.0},
	}
	assert.InDelta(t, 0.5, WeightedConfidence(reps), 1e-9)
}

func TestFuseVerdict_TieBreaksByRank(t *testing.T) {
	reps := []model.Reputation{
		{Verdict: model.VerdictMalicious, ReliabilityScore: 0.5},
		{Verdict: model.VerdictBenign, ReliabilityScore: 0.5},
	}
	assert.Equal(t, model.VerdictMalicious, FuseVerdict(reps))
}

func TestFuseVerdict_HighestTotalWins(t *testing.T) {
	reps := []model.Reputation{
		{Verdict: model.VerdictBenign, ReliabilityScore: 0.9},
		{Verdict: model.VerdictMalicious, ReliabilityScore: 0.3},
	}
	assert.Equal(t, model.VerdictBenign, FuseVerdict(reps))
}
