package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleHost_ReturnsBoundedPercentages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sample, err := SampleHost(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sample.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, sample.MemUsedPct, 0.0)
	assert.LessOrEqual(t, sample.MemUsedPct, 100.0)
	assert.False(t, sample.Timestamp.IsZero())
}

func TestSampleHostPeriodically_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := SampleHostPeriodically(ctx, 10*time.Millisecond)

	select {
	case sample, ok := <-ch:
		if ok {
			assert.False(t, sample.Timestamp.IsZero())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first sample")
	}

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after context cancellation")
		}
	}
}
