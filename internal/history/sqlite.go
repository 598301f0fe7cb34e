package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opencode-ai/recipechat/pkg/types"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id               TEXT PRIMARY KEY,
	last_interaction TEXT NOT NULL,
	data             TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS inputs (
	seq  INTEGER PRIMARY KEY,
	text TEXT NOT NULL
);`

// SQLiteBackend stores history in a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases stable and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Read(ctx context.Context) (*types.UserLocalHistory, error) {
	h := &types.UserLocalHistory{Chat: types.ChatHistory{}}

	rows, err := b.db.QueryContext(ctx, "SELECT id, data FROM chats")
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		var t types.TranscriptJSON
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("chat %s: %w", id, err)
		}
		h.Chat[id] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	inputRows, err := b.db.QueryContext(ctx, "SELECT text FROM inputs ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer inputRows.Close()
	for inputRows.Next() {
		var text string
		if err := inputRows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		h.Input = append(h.Input, text)
	}
	if err := inputRows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(h.Chat) == 0 && len(h.Input) == 0 {
		return nil, nil
	}
	return h, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, h types.UserLocalHistory) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chats"); err != nil {
		return err
	}
	for id, t := range h.Chat {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal chat %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chats (id, last_interaction, data) VALUES (?, ?, ?)",
			id, t.LastInteractionTimestamp.UTC().Format(time.RFC3339Nano), string(data),
		); err != nil {
			return fmt.Errorf("insert chat %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM inputs"); err != nil {
		return err
	}
	for i, text := range h.Input {
		if _, err := tx.ExecContext(ctx, "INSERT INTO inputs (seq, text) VALUES (?, ?)", i, text); err != nil {
			return fmt.Errorf("insert input: %w", err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	return err
}

func (b *SQLiteBackend) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM chats"); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, "DELETE FROM inputs")
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
