// Package memory contains an in-process publisher used when no broker is
// configured and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultLimit bounds the retained message history.
const DefaultLimit = 256

// Publisher keeps the most recent published payloads, JSON-encoded the same
// way the Pub/Sub publisher sends them.
type Publisher struct {
	mu       sync.RWMutex
	limit    int
	total    int
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID    string
	Topic string
	Data  []byte
}

// New returns a memory Publisher retaining at most limit messages.
func New(limit int) *Publisher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Publisher{limit: limit}
}

// Publish encodes the payload, records it and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total++
	id := fmt.Sprintf("memory-%d", p.total)
	if len(p.messages) >= p.limit {
		p.messages = p.messages[1:]
	}
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Data: data})
	return id, nil
}

// Messages returns the retained publishes, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
