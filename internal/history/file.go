package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opencode-ai/recipechat/internal/storage"
	"github.com/opencode-ai/recipechat/pkg/types"
)

// FileBackend stores one JSON document per chat plus one for the input history:
//
//	<dir>/chat/<id>.json
//	<dir>/input.json
type FileBackend struct {
	store *storage.Storage
}

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{store: storage.New(dir)}
}

func (b *FileBackend) Read(ctx context.Context) (*types.UserLocalHistory, error) {
	h := &types.UserLocalHistory{Chat: types.ChatHistory{}}
	found := false

	err := b.store.Scan(ctx, []string{"chat"}, func(key string, data json.RawMessage) error {
		var t types.TranscriptJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("chat %s: %w", key, err)
		}
		if t.ID == "" {
			t.ID = key
		}
		h.Chat[t.ID] = t
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = b.store.Get(ctx, []string{"input"}, &h.Input)
	switch {
	case err == nil:
		found = true
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	if !found {
		return nil, nil
	}
	return h, nil
}

func (b *FileBackend) Write(ctx context.Context, h types.UserLocalHistory) error {
	existing, err := b.store.Keys(ctx, "chat")
	if err != nil {
		return err
	}
	for id, t := range h.Chat {
		if err := b.store.Put(ctx, []string{"chat", id}, t); err != nil {
			return err
		}
	}
	for _, id := range existing {
		if _, ok := h.Chat[id]; !ok {
			if err := b.store.Delete(ctx, []string{"chat", id}); err != nil {
				return err
			}
		}
	}

	input := h.Input
	if input == nil {
		input = []string{}
	}
	return b.store.Put(ctx, []string{"input"}, input)
}

func (b *FileBackend) Delete(ctx context.Context, id string) error {
	return b.store.Delete(ctx, []string{"chat", id})
}

func (b *FileBackend) Clear(ctx context.Context) error {
	ids, err := b.store.Keys(ctx, "chat")
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := b.store.Delete(ctx, []string{"chat", id}); err != nil {
			return err
		}
	}
	return b.store.Delete(ctx, []string{"input"})
}

func (b *FileBackend) Close() error { return nil }
