package app

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventHubDeliversToSubscribers(t *testing.T) {
	hub := newEventHub()
	first, cancelFirst := hub.subscribe()
	second, cancelSecond := hub.subscribe()
	defer cancelFirst()
	defer cancelSecond()

	hub.publish("publications")

	for name, events := range map[string]<-chan string{"first": first, "second": second} {
		select {
		case got := <-events:
			if got != "publications" {
				t.Errorf("%s subscriber got %q", name, got)
			}
		default:
			t.Errorf("%s subscriber received nothing", name)
		}
	}
}

func TestEventHubCancelClosesChannel(t *testing.T) {
	hub := newEventHub()
	events, cancel := hub.subscribe()

	cancel()
	if _, open := <-events; open {
		t.Fatal("channel still open after cancel")
	}
	cancel() // second call is a no-op

	hub.publish("talks") // must not panic or resurrect the subscription
	if _, open := <-events; open {
		t.Fatal("closed channel delivered an event")
	}
}

func TestEventHubDropsEventsWhenBufferFull(t *testing.T) {
	hub := newEventHub()
	events, cancel := hub.subscribe()
	defer cancel()

	for i := 0; i < 3*cap(events); i++ {
		hub.publish("activities")
	}

	delivered := 0
drain:
	for {
		select {
		case <-events:
			delivered++
		default:
			break drain
		}
	}
	if delivered != cap(events) {
		t.Errorf("delivered = %d, want %d (excess events dropped, not queued)", delivered, cap(events))
	}
}

func TestContentEventsStream(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/content/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The subscription is installed before the response headers flush, so a
	// mutation from here on must surface as a change frame.
	rec := doJSON(t, server, http.MethodPost, "/api/admin/research-interests", token, map[string]string{"title": "Formal Methods"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mutation status = %d: %s", rec.Code, rec.Body.String())
	}

	type changeFrame struct {
		Collection string          `json:"collection"`
		Document   json.RawMessage `json:"document"`
	}
	frames := make(chan changeFrame, 1)
	readErrs := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				readErrs <- err
				return
			}
			if !strings.HasPrefix(line, "event: change") {
				continue
			}
			data, err := reader.ReadString('\n')
			if err != nil {
				readErrs <- err
				return
			}
			var frame changeFrame
			raw := strings.TrimPrefix(strings.TrimSpace(data), "data: ")
			if err := json.Unmarshal([]byte(raw), &frame); err != nil {
				readErrs <- err
				return
			}
			frames <- frame
			return
		}
	}()

	select {
	case frame := <-frames:
		if frame.Collection != "researchInterests" {
			t.Errorf("collection = %q, want researchInterests", frame.Collection)
		}
		if !strings.Contains(string(frame.Document), "Formal Methods") {
			t.Errorf("document missing new interest: %s", frame.Document)
		}
	case err := <-readErrs:
		t.Fatalf("read stream: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event within 5s")
	}

	// Dropping the client must unwind the server-side subscription.
	cancel()
	if _, err := resp.Body.Read(make([]byte, 1)); err == nil {
		t.Error("expected read to fail after client disconnect")
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		server.service.events.mu.Lock()
		remaining := len(server.service.events.subs)
		server.service.events.mu.Unlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d subscriptions still registered after disconnect", remaining)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
