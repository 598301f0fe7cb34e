package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/recipechat/internal/event"
)

// mockResponseWriter implements http.ResponseWriter and http.Flusher.
type mockResponseWriter struct {
	header  http.Header
	body    strings.Builder
	status  int
	flushed int
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{header: make(http.Header)}
}

func (m *mockResponseWriter) Header() http.Header         { return m.header }
func (m *mockResponseWriter) Write(b []byte) (int, error) { return m.body.Write(b) }
func (m *mockResponseWriter) WriteHeader(code int)        { m.status = code }
func (m *mockResponseWriter) Flush()                      { m.flushed++ }

// noFlushWriter does not implement http.Flusher.
type noFlushWriter struct {
	header http.Header
}

func (n *noFlushWriter) Header() http.Header         { return n.header }
func (n *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (n *noFlushWriter) WriteHeader(int)             {}

func TestSSEWriter(t *testing.T) {
	t.Run("writeEvent", func(t *testing.T) {
		w := newMockResponseWriter()
		sse, err := newSSEWriter(w)
		if err != nil {
			t.Fatalf("Failed to create SSE writer: %v", err)
		}

		if err := sse.writeEvent("message", map[string]string{"key": "value"}); err != nil {
			t.Fatalf("Failed to write event: %v", err)
		}

		body := w.body.String()
		if !strings.Contains(body, "event: message\n") {
			t.Errorf("Expected event line, got %q", body)
		}
		if !strings.Contains(body, `data: {"key":"value"}`) {
			t.Errorf("Expected data line, got %q", body)
		}
		if !strings.HasSuffix(body, "\n\n") {
			t.Error("Event should end with a blank line")
		}
		if w.flushed == 0 {
			t.Error("Event should be flushed")
		}
	})

	t.Run("writeHeartbeat", func(t *testing.T) {
		w := newMockResponseWriter()
		sse, _ := newSSEWriter(w)
		sse.writeHeartbeat()
		if w.body.String() != ": heartbeat\n\n" {
			t.Errorf("Unexpected heartbeat %q", w.body.String())
		}
	})

	t.Run("requires flusher", func(t *testing.T) {
		if _, err := newSSEWriter(&noFlushWriter{header: make(http.Header)}); err == nil {
			t.Error("Expected an error without http.Flusher")
		}
	})
}

func TestStaleFilter(t *testing.T) {
	f := staleFilter{}
	env := func(view string, typ event.EventType, seq uint64) event.Envelope {
		return event.Envelope{SessionID: view, Type: typ, Seq: seq}
	}

	if !f.fresh(env("a", event.TranscriptUpdated, 5)) {
		t.Error("First event should be fresh")
	}
	if f.fresh(env("a", event.TranscriptUpdated, 3)) {
		t.Error("Older transcript of the same view should be stale")
	}
	if f.fresh(env("a", event.TranscriptUpdated, 5)) {
		t.Error("Repeated sequence should be stale")
	}
	if !f.fresh(env("a", event.HistoryUpdated, 4)) {
		t.Error("Other event types are tracked separately")
	}
	if !f.fresh(env("b", event.TranscriptUpdated, 2)) {
		t.Error("Other views are tracked separately")
	}
	if !f.fresh(env("a", event.TranscriptUpdated, 9)) {
		t.Error("Newer transcript should be fresh")
	}
}

func TestEventsUnknownView(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))

	w := do(t, srv, "GET", "/event?view=missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// readEvents decodes SSE data lines from body onto a channel.
func readEvents(t *testing.T, resp *http.Response) <-chan SDKEvent {
	t.Helper()
	out := make(chan SDKEvent, 64)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var e SDKEvent
			if err := json.Unmarshal([]byte(data), &e); err != nil {
				continue
			}
			out <- e
		}
	}()
	return out
}

func TestEventsStreamTranscript(t *testing.T) {
	srv := setupTestServer(t, newReplyTransport("Hello"))
	view := createView(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/event?view=" + view.ID)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %q", ct)
	}

	events := readEvents(t, resp)
	select {
	case e := <-events:
		if e.Type != "server.connected" {
			t.Fatalf("Expected server.connected first, got %s", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server.connected")
	}

	w := do(t, srv, "POST", "/view/"+view.ID+"/message", MessageRequest{Text: "hi"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}

	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("Stream closed before the answer arrived")
			}
			if e.ViewID != "" && e.ViewID != view.ID {
				t.Errorf("Received event of another view: %s", e.ViewID)
			}
			if e.Type != event.TranscriptUpdated {
				continue
			}
			var data event.TranscriptUpdatedData
			if err := json.Unmarshal(e.Properties, &data); err != nil {
				t.Fatalf("Failed to decode transcript: %v", err)
			}
			if data.InProgress || len(data.Messages) != 2 {
				continue
			}
			if data.Messages[1].Text != "Hello" {
				t.Errorf("Expected 'Hello', got %q", data.Messages[1].Text)
			}
			return
		case <-timeout:
			t.Fatal("Timed out waiting for the final transcript")
		}
	}
}
