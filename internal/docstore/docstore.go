// Package docstore provides the document store the portfolio content lives in:
// one JSON document per (collection, key), with whole-document writes,
// top-level field merges, and live change subscriptions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when the addressed document does not exist.
var ErrNotFound = errors.New("document not found")

// ChangeHandler receives the full document after every change, including the
// current snapshot shortly after subscribing.
type ChangeHandler func(doc json.RawMessage)

// ErrorHandler receives subscription faults. The channel is not retried
// automatically; recovery is the subscriber's concern.
type ErrorHandler func(err error)

type Store interface {
	// Get returns the document, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (json.RawMessage, error)
	// Set overwrites the whole document, creating it if absent.
	Set(ctx context.Context, collection, key string, doc json.RawMessage) error
	// Update merges the given top-level fields into an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, key string, fields map[string]json.RawMessage) error
	// Subscribe registers handlers for the document and returns an
	// unsubscribe function. onChange is invoked with the current snapshot
	// (when the document exists) and again after every write.
	Subscribe(collection, key string, onChange ChangeHandler, onError ErrorHandler) (unsubscribe func())
	Close() error
}

// MergeFields applies a top-level field merge to a JSON document.
func MergeFields(doc json.RawMessage, fields map[string]json.RawMessage) (json.RawMessage, error) {
	var current map[string]json.RawMessage
	if err := json.Unmarshal(doc, &current); err != nil {
		return nil, err
	}
	if current == nil {
		current = make(map[string]json.RawMessage, len(fields))
	}
	for name, value := range fields {
		current[name] = value
	}
	return json.Marshal(current)
}
