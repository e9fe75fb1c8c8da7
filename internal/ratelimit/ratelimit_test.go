package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AcquireConsumesCapacity(t *testing.T) {
	l := New(120)
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Equal(t, 115, l.Available())
}

func TestLimiter_AcquireBlocksWhenExhausted(t *testing.T) {
	l := New(4)
	defer l.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	err := l.Acquire(ctx)
	assert.Error(t, err)
}

func TestRegistry_PerSourceIsolation(t *testing.T) {
	r := NewRegistry(10)
	defer r.Close()

	a := r.For("source-a")
	b := r.For("source-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.For("source-a"))
}
