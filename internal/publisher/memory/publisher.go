// Package memory keeps record notifications in process. It backs local runs
// without Pub/Sub and the pipeline tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Publisher stores encoded notifications for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

// Message is one accepted publish. Data holds the JSON encoding that the
// Pub/Sub publisher would have sent.
type Message struct {
	ID    string
	Topic string
	Data  []byte
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish encodes payload and records it under topic.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Data: data})
	return id, nil
}

// Messages returns a copy of the messages published to topic, or all
// messages when topic is empty.
func (p *Publisher) Messages(topic string) []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, 0, len(p.messages))
	for _, m := range p.messages {
		if topic != "" && m.Topic != topic {
			continue
		}
		m.Data = append([]byte(nil), m.Data...)
		out = append(out, m)
	}
	return out
}

// Decode unmarshals the message data into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode message %s: %w", m.ID, err)
	}
	return nil
}
