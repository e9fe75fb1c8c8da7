// Package eventbus provides reference implementations of the spec §6
// publish(topic, event) external collaborator: an in-memory fan-out bus
// for tests and single-process deployments, and a logging-only bus for
// environments with no real subscriber, grounded on the teacher's
// EngineBus fan-out idiom.
package eventbus

import (
	"context"
	"sync"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/obslog"
)

// Subscriber receives every event published on a topic it is registered
// for.
type Subscriber func(ctx context.Context, event model.Event)

// Bus is an in-memory, synchronous fan-out implementation of
// model.EventBus. Publish calls every subscriber registered for topic
// (and every "*" wildcard subscriber) before returning.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]Subscriber)}
}

// Subscribe registers fn to receive every event published to topic.
// Use "*" to receive every event regardless of topic.
func (b *Bus) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], fn)
}

// Publish implements model.EventBus by fanning event out to every
// subscriber of topic plus every wildcard subscriber.
func (b *Bus) Publish(ctx context.Context, topic string, event model.Event) error {
	b.mu.RLock()
	targets := append(append([]Subscriber{}, b.subscribers[topic]...), b.subscribers["*"]...)
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ctx, event)
	}
	return nil
}

// LoggingBus implements model.EventBus by writing every event to a
// structured logger, for deployments with no real subscriber wired up
// yet.
type LoggingBus struct {
	log *obslog.Logger
}

// NewLoggingBus constructs a LoggingBus.
func NewLoggingBus(log *obslog.Logger) *LoggingBus {
	return &LoggingBus{log: log}
}

// Publish implements model.EventBus.
func (b *LoggingBus) Publish(ctx context.Context, topic string, event model.Event) error {
	if b.log == nil {
		return nil
	}
	b.log.WithContext(ctx).WithFields(map[string]interface{}{
		"topic":       topic,
		"kind":        event.Kind,
		"job_id":      event.JobID,
		"analysis_id": event.AnalysisID,
		"verdict":     event.Verdict,
	}).Info("event published")
	return nil
}
