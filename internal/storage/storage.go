// Package storage persists conversations and their council results.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mapachekurt/llm-council/internal/council"
)

// DefaultTitle is the title of a conversation until one is generated.
const DefaultTitle = "New Conversation"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrExists is returned when creating a conversation whose id is taken.
	ErrExists = errors.New("conversation already exists")

	// ErrInvalidID is returned for ids that are empty or contain path elements.
	ErrInvalidID = errors.New("invalid conversation id")
)

// Message is one turn of a conversation. User messages carry Content;
// assistant messages carry the three stages.
type Message struct {
	Role    string                   `json:"role"`
	Content string                   `json:"content,omitempty"`
	Stage1  []council.Stage1Response `json:"stage1,omitempty"`
	Stage2  []council.Evaluation     `json:"stage2,omitempty"`
	Stage3  *council.FinalAnswer     `json:"stage3,omitempty"`
}

// MarshalJSON writes user messages as {role, content} and assistant messages
// with all three stages present, empty stages as [].
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Role != RoleAssistant {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Content})
	}
	return json.Marshal(struct {
		Role   string                   `json:"role"`
		Stage1 []council.Stage1Response `json:"stage1"`
		Stage2 []council.Evaluation     `json:"stage2"`
		Stage3 *council.FinalAnswer     `json:"stage3"`
	}{m.Role, nonNil(m.Stage1), nonNil(m.Stage2), m.Stage3})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Conversation is a full conversation with all messages.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// ConversationMetadata is the list view of a conversation.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// Store persists conversations. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, id string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	// List returns metadata for every conversation, newest first.
	List(ctx context.Context) ([]ConversationMetadata, error)
	AddUserMessage(ctx context.Context, id, content string) error
	AddAssistantMessage(ctx context.Context, id string, stage1 []council.Stage1Response, stage2 []council.Evaluation, stage3 council.FinalAnswer) error
	UpdateTitle(ctx context.Context, id, title string) error
	Close() error
}

// Open returns the store for driver ("file" or "sqlite") rooted at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "file", "":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func newConversation(id string) *Conversation {
	return &Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Title:     DefaultTitle,
		Messages:  []Message{},
	}
}

func userMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func assistantMessage(stage1 []council.Stage1Response, stage2 []council.Evaluation, stage3 council.FinalAnswer) Message {
	return Message{
		Role:   RoleAssistant,
		Stage1: nonNil(stage1),
		Stage2: nonNil(stage2),
		Stage3: &stage3,
	}
}
