package history

import (
	"encoding/json"
	"strings"
	"testing"
)

func baselineSnapshots() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"profile": json.RawMessage(`{"name":"Avery Lindqvist","title":"Professor"}`),
		"talks":   json.RawMessage(`{"items":[]}`),
	}
}

func newTestRepo(t *testing.T) *Service {
	t.Helper()
	svc := New(t.TempDir())
	if err := svc.Ensure(baselineSnapshots(), "admin"); err != nil {
		t.Fatalf("ensure repo: %v", err)
	}
	return svc
}

func TestEnsureCreatesBaseline(t *testing.T) {
	svc := newTestRepo(t)

	log, err := svc.Log(10)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("commits = %d, want 1 baseline", len(log))
	}
	if !strings.Contains(log[0].Message, "baseline") {
		t.Errorf("baseline message = %q", log[0].Message)
	}
	if log[0].Author != "admin" {
		t.Errorf("author = %q, want admin", log[0].Author)
	}
	if len(log[0].Hash) != 7 {
		t.Errorf("hash %q should be abbreviated to 7 chars", log[0].Hash)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc := newTestRepo(t)

	if err := svc.Ensure(baselineSnapshots(), "admin"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	log, err := svc.Log(10)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 1 {
		t.Errorf("commits = %d, second ensure should not add commits", len(log))
	}
}

func TestRecordCommitsChange(t *testing.T) {
	svc := newTestRepo(t)

	info, err := svc.Record("profile", json.RawMessage(`{"name":"Avery Lindqvist","title":"Dean"}`), "Avery", "Update profile")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.Contains(info.Message, "Update profile") {
		t.Errorf("commit message = %q", info.Message)
	}
	if info.Author != "Avery" {
		t.Errorf("author = %q", info.Author)
	}

	log, err := svc.Log(10)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("commits = %d, want 2", len(log))
	}
	if log[0].Hash != info.Hash {
		t.Errorf("newest commit %q != recorded %q", log[0].Hash, info.Hash)
	}
}

func TestRecordIdenticalContentIsNoop(t *testing.T) {
	svc := newTestRepo(t)

	first, err := svc.Record("profile", json.RawMessage(`{"name":"A","title":"B"}`), "Avery", "Edit")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := svc.Record("profile", json.RawMessage(`{"name":"A","title":"B"}`), "Avery", "Edit again")
	if err != nil {
		t.Fatalf("record repeat: %v", err)
	}
	if second.Hash != first.Hash {
		t.Errorf("unchanged content created a new commit: %q -> %q", first.Hash, second.Hash)
	}

	log, err := svc.Log(10)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 2 {
		t.Errorf("commits = %d, want baseline + one edit", len(log))
	}
}

func TestLogHonorsLimit(t *testing.T) {
	svc := newTestRepo(t)

	for i := 0; i < 3; i++ {
		doc, _ := json.Marshal(map[string]any{"items": []string{strings.Repeat("x", i+1)}})
		if _, err := svc.Record("talks", doc, "Avery", "Edit talks"); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	log, err := svc.Log(2)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 2 {
		t.Errorf("commits = %d, want limit 2", len(log))
	}
}

func TestSnapshotAtReturnsHistoricalDocument(t *testing.T) {
	svc := newTestRepo(t)

	first, err := svc.Record("profile", json.RawMessage(`{"name":"Version One"}`), "Avery", "v1")
	if err != nil {
		t.Fatalf("record v1: %v", err)
	}
	if _, err := svc.Record("profile", json.RawMessage(`{"name":"Version Two"}`), "Avery", "v2"); err != nil {
		t.Fatalf("record v2: %v", err)
	}

	raw, info, err := svc.SnapshotAt(first.Hash, "profile")
	if err != nil {
		t.Fatalf("snapshot at: %v", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if doc["name"] != "Version One" {
		t.Errorf("snapshot name = %q, want the historical value", doc["name"])
	}
	if info.Hash != first.Hash {
		t.Errorf("snapshot commit = %q, want %q", info.Hash, first.Hash)
	}
}

func TestSnapshotAtUnknownFile(t *testing.T) {
	svc := newTestRepo(t)

	log, err := svc.Log(1)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, _, err := svc.SnapshotAt(log[0].Hash, "publications"); err == nil {
		t.Error("expected error for a collection absent from the commit")
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Avery Lindqvist": "Avery.Lindqvist",
		"admin":           "admin",
		"!!!":             "user",
	}
	for in, want := range cases {
		if got := sanitizeEmail(in); got != want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
