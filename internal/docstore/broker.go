package docstore

import (
	"encoding/json"
	"sync"
)

type subscriber struct {
	onChange ChangeHandler
	onError  ErrorHandler
}

// broker fans document changes out to in-process subscribers.
type broker struct {
	mu   sync.RWMutex
	subs map[string]map[int]subscriber
	next int
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[int]subscriber)}
}

func docKey(collection, key string) string {
	return collection + "/" + key
}

func (b *broker) subscribe(collection, key string, onChange ChangeHandler, onError ErrorHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	channel := docKey(collection, key)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]subscriber)
	}
	b.subs[channel][id] = subscriber{onChange: onChange, onError: onError}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
	}
}

func (b *broker) publish(collection, key string, doc json.RawMessage) {
	for _, sub := range b.snapshotSubs(collection, key) {
		if sub.onChange != nil {
			sub.onChange(doc)
		}
	}
}

func (b *broker) fail(collection, key string, err error) {
	for _, sub := range b.snapshotSubs(collection, key) {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

// snapshotSubs copies the subscriber set so handlers run outside the lock;
// a handler may unsubscribe itself.
func (b *broker) snapshotSubs(collection, key string) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	channel := b.subs[docKey(collection, key)]
	if len(channel) == 0 {
		return nil
	}
	out := make([]subscriber, 0, len(channel))
	for _, sub := range channel {
		out = append(out, sub)
	}
	return out
}
