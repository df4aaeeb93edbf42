package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mapachekurt/llm-council/internal/council"
)

// FileStore keeps one JSON file per conversation in a directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Create(_ context.Context, id string) (*Conversation, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(id)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	conv := newConversation(id)
	if err := s.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *FileStore) Get(_ context.Context, id string) (*Conversation, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *FileStore) List(_ context.Context) ([]ConversationMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	conversations := make([]ConversationMetadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}
		conversations = append(conversations, ConversationMetadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations, nil
}

func (s *FileStore) AddUserMessage(_ context.Context, id, content string) error {
	return s.update(id, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, userMessage(content))
	})
}

func (s *FileStore) AddAssistantMessage(_ context.Context, id string, stage1 []council.Stage1Response, stage2 []council.Evaluation, stage3 council.FinalAnswer) error {
	return s.update(id, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, assistantMessage(stage1, stage2, stage3))
	})
}

func (s *FileStore) UpdateTitle(_ context.Context, id, title string) error {
	return s.update(id, func(conv *Conversation) {
		conv.Title = title
	})
}

func (s *FileStore) Close() error { return nil }

// update runs a read-modify-write of one conversation under the write lock.
func (s *FileStore) update(id string, mutate func(*Conversation)) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(id)
	if err != nil {
		return err
	}
	mutate(conv)
	return s.save(conv)
}

func (s *FileStore) load(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation JSON: %w", err)
	}
	if conv.Messages == nil {
		conv.Messages = []Message{}
	}
	return &conv, nil
}

// save writes to a temp file and renames it over the old one.
func (s *FileStore) save(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, conv.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(conv.ID)); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}
