// Package history keeps the chat and input history shared by every session of
// the process and persists it through a Backend.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// Backend is durable storage for the shared history.
type Backend interface {
	// Read returns the stored history, or nil when nothing has been stored yet.
	Read(ctx context.Context) (*types.UserLocalHistory, error)
	// Write replaces the stored history with h.
	Write(ctx context.Context, h types.UserLocalHistory) error
	// Delete removes one chat.
	Delete(ctx context.Context, id string) error
	// Clear removes all chats and input history.
	Clear(ctx context.Context) error
	Close() error
}

// Store is the process-wide chat and input history.
//
// Updates never mutate a published map or slice: each one builds a new value
// and swaps it in, so snapshots handed out earlier stay valid.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	loaded bool
	chat   types.ChatHistory
	input  []string

	// writeMu orders backend writes so the last write carries the latest state.
	writeMu sync.Mutex
}

// NewStore creates a store over backend. Nothing is read until Load.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		chat:    types.ChatHistory{},
	}
}

// Load reads the backend once. Later calls are no-ops.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	h, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	s.loaded = true
	if h == nil {
		return nil
	}
	if h.Chat != nil {
		s.chat = h.Chat
	}
	s.input = h.Input
	logging.Debug().Int("chats", len(s.chat)).Int("inputs", len(s.input)).Msg("history loaded")
	return nil
}

// Loaded reports whether Load has completed successfully.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Snapshot returns the current history. Callers must not modify it.
func (s *Store) Snapshot() types.UserLocalHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.UserLocalHistory{Chat: s.chat, Input: s.input}
}

// Get returns the stored transcript for id.
func (s *Store) Get(id string) (types.TranscriptJSON, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.chat[id]
	return t, ok
}

// MostRecent returns the chat with the latest interaction.
func (s *Store) MostRecent() (types.TranscriptJSON, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best types.TranscriptJSON
	found := false
	for _, t := range s.chat {
		if !found || t.LastInteractionTimestamp.After(best.LastInteractionTimestamp) {
			best, found = t, true
		}
	}
	return best, found
}

// IDs returns the chat ids, most recent first.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.chat))
	for id := range s.chat {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := s.chat[ids[i]].LastInteractionTimestamp, s.chat[ids[j]].LastInteractionTimestamp
		if ti.Equal(tj) {
			return ids[i] > ids[j]
		}
		return ti.After(tj)
	})
	return ids
}

// Save stores t under t.ID and persists the whole history.
func (s *Store) Save(ctx context.Context, t types.TranscriptJSON) error {
	s.mu.Lock()
	next := make(types.ChatHistory, len(s.chat)+1)
	for k, v := range s.chat {
		next[k] = v
	}
	next[t.ID] = t
	s.chat = next
	s.mu.Unlock()

	return s.persist(ctx)
}

// AddInput appends text to the input history and persists.
func (s *Store) AddInput(ctx context.Context, text string) error {
	s.mu.Lock()
	next := make([]string, len(s.input), len(s.input)+1)
	copy(next, s.input)
	s.input = append(next, text)
	s.mu.Unlock()

	return s.persist(ctx)
}

// Delete removes one chat from memory and from the backend.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	next := make(types.ChatHistory, len(s.chat))
	for k, v := range s.chat {
		if k != id {
			next[k] = v
		}
	}
	s.chat = next
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	return nil
}

// Clear drops all chats and input history.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.chat = types.ChatHistory{}
	s.input = nil
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Write(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Open returns the backend named kind ("file" or "sqlite") at path.
func Open(ctx context.Context, kind, path string) (Backend, error) {
	switch kind {
	case "", "file":
		return NewFileBackend(path), nil
	case "sqlite":
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unknown history backend %q", kind)
	}
}
