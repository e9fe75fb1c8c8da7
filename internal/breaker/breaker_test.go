package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New("src", Config{Threshold: 3, Cooldown: 50 * time.Millisecond})
	ctx := context.Background()
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := b.Execute(ctx, func() error { return failing })
		require.ErrorIs(t, err, failing)
	}

	assert.False(t, b.IsAvailable())
	err := b.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New("src", Config{Threshold: 1, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()
	failing := errors.New("boom")

	require.Error(t, b.Execute(ctx, func() error { return failing }))
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.IsAvailable())
}

func TestRegistry_PerSourceIsolation(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	a := r.For("source-a")
	b := r.For("source-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.For("source-a"))
}
