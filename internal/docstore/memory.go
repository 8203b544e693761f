package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store used by tests and the zero-dependency dev mode.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]json.RawMessage
	broker *broker
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]json.RawMessage),
		broker: newBroker(),
	}
}

func (m *Memory) Get(_ context.Context, collection, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docKey(collection, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRaw(doc), nil
}

func (m *Memory) Set(_ context.Context, collection, key string, doc json.RawMessage) error {
	stored := cloneRaw(doc)
	m.mu.Lock()
	m.docs[docKey(collection, key)] = stored
	m.mu.Unlock()

	m.broker.publish(collection, key, cloneRaw(stored))
	return nil
}

func (m *Memory) Update(_ context.Context, collection, key string, fields map[string]json.RawMessage) error {
	m.mu.Lock()
	current, ok := m.docs[docKey(collection, key)]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged, err := MergeFields(current, fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[docKey(collection, key)] = merged
	m.mu.Unlock()

	m.broker.publish(collection, key, cloneRaw(merged))
	return nil
}

// Subscribe delivers the current snapshot synchronously before returning,
// then every subsequent write.
func (m *Memory) Subscribe(collection, key string, onChange ChangeHandler, onError ErrorHandler) func() {
	unsubscribe := m.broker.subscribe(collection, key, onChange, onError)

	m.mu.RLock()
	doc, ok := m.docs[docKey(collection, key)]
	m.mu.RUnlock()
	if ok && onChange != nil {
		onChange(cloneRaw(doc))
	}
	return unsubscribe
}

func (m *Memory) Close() error { return nil }

func cloneRaw(doc json.RawMessage) json.RawMessage {
	if doc == nil {
		return nil
	}
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out
}
