package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mapachekurt/llm-council/internal/council"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	stage1_json TEXT,
	stage2_json TEXT,
	stage3_json TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at DESC);
`

// SQLiteStore keeps conversations in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between our own goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, id string) (*Conversation, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	conv := newConversation(id)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrExists, id)
		}
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Conversation, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	conv := Conversation{Messages: []Message{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, stage1_json, stage2_json, stage3_json
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg Message
		var stage1JSON, stage2JSON, stage3JSON sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &stage1JSON, &stage2JSON, &stage3JSON); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := unmarshalNull(stage1JSON, &msg.Stage1); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage1: %w", err)
		}
		if err := unmarshalNull(stage2JSON, &msg.Stage2); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage2: %w", err)
		}
		if stage3JSON.Valid {
			var stage3 council.FinalAnswer
			if err := json.Unmarshal([]byte(stage3JSON.String), &stage3); err != nil {
				return nil, fmt.Errorf("failed to unmarshal stage3: %w", err)
			}
			msg.Stage3 = &stage3
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]ConversationMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.created_at DESC, c.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]ConversationMetadata, 0)
	for rows.Next() {
		var meta ConversationMetadata
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

func (s *SQLiteStore) AddUserMessage(ctx context.Context, id, content string) error {
	return s.insertMessage(ctx, id, userMessage(content))
}

func (s *SQLiteStore) AddAssistantMessage(ctx context.Context, id string, stage1 []council.Stage1Response, stage2 []council.Evaluation, stage3 council.FinalAnswer) error {
	return s.insertMessage(ctx, id, assistantMessage(stage1, stage2, stage3))
}

func (s *SQLiteStore) UpdateTitle(ctx context.Context, id, title string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) insertMessage(ctx context.Context, id string, msg Message) error {
	if err := validateID(id); err != nil {
		return err
	}

	var stage1JSON, stage2JSON, stage3JSON *string
	if msg.Role == RoleAssistant {
		var err error
		if stage1JSON, err = marshalString(msg.Stage1); err != nil {
			return fmt.Errorf("failed to marshal stage1: %w", err)
		}
		if stage2JSON, err = marshalString(msg.Stage2); err != nil {
			return fmt.Errorf("failed to marshal stage2: %w", err)
		}
		if stage3JSON, err = marshalString(msg.Stage3); err != nil {
			return fmt.Errorf("failed to marshal stage3: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, stage1_json, stage2_json, stage3_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, msg.Role, msg.Content, stage1JSON, stage2JSON, stage3JSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return tx.Commit()
}

func marshalString(v any) (*string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	str := string(data)
	return &str, nil
}

func unmarshalNull(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}
