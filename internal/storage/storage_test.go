package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

type chatDoc struct {
	ID    string   `json:"id"`
	Turns []string `json:"turns"`
}

func TestStorage_PutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	doc := chatDoc{ID: "01HZX", Turns: []string{"hi", "hello"}}
	if err := s.Put(ctx, []string{"chat", "01HZX"}, doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "chat", "01HZX.json")); err != nil {
		t.Fatalf("document file not created: %v", err)
	}

	var got chatDoc
	if err := s.Get(ctx, []string{"chat", "01HZX"}, &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != doc.ID || len(got.Turns) != 2 || got.Turns[1] != "hello" {
		t.Errorf("got %+v, want %+v", got, doc)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "chat", "01HZX.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after Put")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "chat", "01HZX.json.lock")); !os.IsNotExist(err) {
		t.Error("lock file left behind after Put")
	}
}

func TestStorage_GetNotFound(t *testing.T) {
	s := New(t.TempDir())

	var doc chatDoc
	if err := s.Get(context.Background(), []string{"chat", "missing"}, &doc); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStorage_InvalidKey(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	for _, path := range [][]string{nil, {""}, {".."}, {"chat", "../escape"}, {"a/b"}} {
		if err := s.Put(ctx, path, chatDoc{}); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q): expected ErrInvalidKey, got %v", path, err)
		}
	}
	if s.Exists(ctx, []string{".."}) {
		t.Error("Exists should be false for an invalid key")
	}
}

func TestStorage_CanceledContext(t *testing.T) {
	s := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, []string{"chat", "x"}, chatDoc{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStorage_DeleteAndExists(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	key := []string{"chat", "gone"}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of missing document should succeed: %v", err)
	}
	if err := s.Put(ctx, key, chatDoc{ID: "gone"}); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(ctx, key) {
		t.Fatal("document should exist after Put")
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists(ctx, key) {
		t.Error("document should not exist after Delete")
	}
}

func TestStorage_KeysAndScan(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	keys, err := s.Keys(ctx, "chat")
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected no keys for missing dir, got %v, %v", keys, err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Put(ctx, []string{"chat", id}, chatDoc{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(tmpDir, "chat", "notes.txt"), []byte("x"), 0644)

	keys, err = s.Keys(ctx, "chat")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("unexpected keys %v", keys)
	}

	seen := map[string]string{}
	err = s.Scan(ctx, []string{"chat"}, func(key string, data json.RawMessage) error {
		var doc chatDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		seen[key] = doc.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen["b"] != "b" {
		t.Errorf("unexpected scan result %v", seen)
	}

	stop := errors.New("stop")
	calls := 0
	err = s.Scan(ctx, []string{"chat"}, func(string, json.RawMessage) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("scan should stop on first error, got %v after %d calls", err, calls)
	}
}

func TestStorage_ConcurrentPut(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Put(ctx, []string{"history"}, chatDoc{ID: "shared", Turns: make([]string, n)}); err != nil {
				t.Errorf("concurrent Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var doc chatDoc
	if err := s.Get(ctx, []string{"history"}, &doc); err != nil {
		t.Fatalf("Get after concurrent writes failed: %v", err)
	}
	if doc.ID != "shared" {
		t.Errorf("unexpected document %+v", doc)
	}
}
