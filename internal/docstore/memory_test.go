package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	if _, err := m.Get(context.Background(), "profile", "main"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySetAndGet(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	doc := json.RawMessage(`{"name":"Avery"}`)
	if err := m.Set(ctx, "profile", "main", doc); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := m.Get(ctx, "profile", "main")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(doc) {
		t.Errorf("got %s, want %s", got, doc)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "profile", "main", json.RawMessage(`{"name":"Avery"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, _ := m.Get(ctx, "profile", "main")
	got[2] = 'X'

	again, _ := m.Get(ctx, "profile", "main")
	if string(again) != `{"name":"Avery"}` {
		t.Errorf("stored document was mutated through a returned copy: %s", again)
	}
}

func TestMemoryUpdateMergesFields(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "profile", "main", json.RawMessage(`{"name":"Avery","title":"Professor"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := m.Update(ctx, "profile", "main", map[string]json.RawMessage{
		"title": json.RawMessage(`"Associate Professor"`),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := m.Get(ctx, "profile", "main")
	var doc map[string]string
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["name"] != "Avery" || doc["title"] != "Associate Professor" {
		t.Errorf("unexpected merged document: %v", doc)
	}
}

func TestMemoryUpdateMissing(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	err := m.Update(context.Background(), "profile", "main", map[string]json.RawMessage{
		"name": json.RawMessage(`"X"`),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySubscribeDeliversSnapshotAndChanges(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "lab", "main", json.RawMessage(`{"name":"Systems Lab"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	var seen []string
	unsubscribe := m.Subscribe("lab", "main", func(doc json.RawMessage) {
		seen = append(seen, string(doc))
	}, nil)
	defer unsubscribe()

	if len(seen) != 1 || seen[0] != `{"name":"Systems Lab"}` {
		t.Fatalf("expected initial snapshot, got %v", seen)
	}

	if err := m.Set(ctx, "lab", "main", json.RawMessage(`{"name":"Compilers Lab"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(seen) != 2 || seen[1] != `{"name":"Compilers Lab"}` {
		t.Fatalf("expected change notification, got %v", seen)
	}
}

func TestMemorySubscribeScopedToDocument(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	calls := 0
	unsubscribe := m.Subscribe("talks", "list", func(json.RawMessage) { calls++ }, nil)
	defer unsubscribe()

	if err := m.Set(ctx, "publications", "list", json.RawMessage(`{"items":[]}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if calls != 0 {
		t.Errorf("subscriber received a change for an unrelated document")
	}
}

func TestMemoryUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	calls := 0
	unsubscribe := m.Subscribe("talks", "list", func(json.RawMessage) { calls++ }, nil)
	unsubscribe()

	if err := m.Set(ctx, "talks", "list", json.RawMessage(`{"items":[]}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if calls != 0 {
		t.Errorf("subscriber received a change after unsubscribe")
	}
}

func TestBrokerFailNotifiesErrorHandlers(t *testing.T) {
	b := newBroker()

	var got error
	unsubscribe := b.subscribe("profile", "main", nil, func(err error) { got = err })
	defer unsubscribe()

	want := errors.New("listener dropped")
	b.fail("profile", "main", want)
	if !errors.Is(got, want) {
		t.Fatalf("expected error handler to receive %v, got %v", want, got)
	}
}

func TestMergeFieldsRejectsNonObject(t *testing.T) {
	_, err := MergeFields(json.RawMessage(`[1,2]`), map[string]json.RawMessage{"a": json.RawMessage(`1`)})
	if err == nil {
		t.Fatal("expected error merging into a non-object document")
	}
}
