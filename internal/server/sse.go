package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opencode-ai/recipechat/internal/event"
)

// SDKEvent is the payload of one SSE message.
type SDKEvent struct {
	Type       event.EventType `json:"type"`
	ViewID     string          `json:"viewID,omitempty"`
	Seq        uint64          `json:"seq"`
	Properties json.RawMessage `json:"properties"`
}

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeEvent writes one SSE event and flushes it.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}
	// ResponseController reaches through middleware wrappers
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// streamKey identifies a stream of snapshot events: each event of a key
// replaces the previous one.
type streamKey struct {
	view string
	typ  event.EventType
}

// staleFilter drops snapshot events older than one already sent. The feed
// does not preserve publish order; sequence numbers do.
type staleFilter map[streamKey]uint64

func (f staleFilter) fresh(env event.Envelope) bool {
	key := streamKey{view: env.SessionID, typ: env.Type}
	if env.Seq <= f[key] {
		return false
	}
	f[key] = env.Seq
	return true
}

// events streams bus events as SSE. With ?view=<id> only that view's events
// and global events are sent.
func (srv *Server) events(w http.ResponseWriter, r *http.Request) {
	viewID := r.URL.Query().Get("view")
	if viewID != "" {
		if _, ok := srv.view(viewID); !ok {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "chat view not found: "+viewID)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	feed, err := srv.bus.Feed(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent("message", SDKEvent{Type: "server.connected", Properties: json.RawMessage("{}")}); err != nil {
		return
	}

	filter := staleFilter{}
	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-feed:
			if !ok {
				return
			}
			if viewID != "" && env.SessionID != "" && env.SessionID != viewID {
				continue
			}
			if !filter.fresh(env) {
				srv.log.Debug().Str("eventType", string(env.Type)).Uint64("seq", env.Seq).Msg("stale event dropped")
				continue
			}
			data := SDKEvent{
				Type:       env.Type,
				ViewID:     env.SessionID,
				Seq:        env.Seq,
				Properties: env.Data,
			}
			if err := sse.writeEvent("message", data); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
