package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestCache_RoundTrip(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute})
	ctx := context.Background()

	_, ok := c.Lookup(ctx, "key1")
	assert.False(t, ok)

	want := model.AnalysisResult{AnalysisID: "a1", ConsensusVerdict: model.VerdictMalicious, ConsensusConfidence: 0.9}
	require.NoError(t, c.StoreResult(ctx, "key1", want, 0))

	got, ok := c.Lookup(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, want.AnalysisID, got.AnalysisID)
	assert.Equal(t, want.ConsensusVerdict, got.ConsensusVerdict)
}

func TestCache_KeepsHighestConfidence(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute})
	ctx := context.Background()

	low := model.AnalysisResult{AnalysisID: "a1", ConsensusConfidence: 0.3}
	high := model.AnalysisResult{AnalysisID: "a1", ConsensusConfidence: 0.95}

	require.NoError(t, c.StoreResult(ctx, "key1", high, 0))
	require.NoError(t, c.StoreResult(ctx, "key1", low, 0))

	got, ok := c.Lookup(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, 0.95, got.ConsensusConfidence)
}

func TestCache_ExpiresEntries(t *testing.T) {
	c := New(Config{DefaultTTL: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, c.StoreResult(ctx, "key1", model.AnalysisResult{AnalysisID: "a1"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Lookup(ctx, "key1")
	assert.False(t, ok)
}

func TestCache_LookupDoesNotAliasStoredResult(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute})
	ctx := context.Background()

	stored := model.AnalysisResult{AnalysisID: "a1", Detections: []model.Detection{{Verdict: model.VerdictBenign}}}
	require.NoError(t, c.StoreResult(ctx, "key1", stored, 0))

	got, ok := c.Lookup(ctx, "key1")
	require.True(t, ok)
	got.Detections[0].Verdict = model.VerdictMalicious

	got2, ok := c.Lookup(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, model.VerdictBenign, got2.Detections[0].Verdict)
}
