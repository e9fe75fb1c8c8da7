package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestBus_PublishFansOutToTopicSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var received []model.Event

	b.Subscribe("analysis", func(ctx context.Context, event model.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
	})

	err := b.Publish(context.Background(), "analysis", model.Event{Kind: model.EventAnalysisCompleted, AnalysisID: "a1"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "a1", received[0].AnalysisID)
}

func TestBus_WildcardSubscriberReceivesEverything(t *testing.T) {
	b := New()
	count := 0
	var mu sync.Mutex
	b.Subscribe("*", func(ctx context.Context, event model.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	_ = b.Publish(context.Background(), "topic-a", model.Event{})
	_ = b.Publish(context.Background(), "topic-b", model.Event{})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestLoggingBus_PublishNeverErrors(t *testing.T) {
	b := NewLoggingBus(nil)
	err := b.Publish(context.Background(), "analysis", model.Event{Kind: model.EventJobQueued})
	assert.NoError(t, err)
}
