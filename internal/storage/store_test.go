package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapachekurt/llm-council/internal/council"
)

type storeFactory func(t *testing.T) Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T) Store {
			s, err := Open("file", filepath.Join(t.TempDir(), "conversations"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := Open("sqlite", filepath.Join(t.TempDir(), "db", "council.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func sampleStages() ([]council.Stage1Response, []council.Evaluation, council.FinalAnswer) {
	stage1 := []council.Stage1Response{
		{Model: "model/a", Content: "Response from A", Reasoning: json.RawMessage(`{"effort":"high"}`)},
		{Model: "model/b", Content: "Response from B"},
	}
	stage2 := []council.Evaluation{
		{Model: "model/a", EvaluationText: "FINAL RANKING:\n1. Response B\n2. Response A", ParsedRanking: []string{"Response B", "Response A"}},
		{Model: "model/b", EvaluationText: "no ranking here", ParsedRanking: []string{}},
	}
	stage3 := council.FinalAnswer{Model: "model/chair", Content: "Final synthesized answer"}
	return stage1, stage2, stage3
}

func TestStoreCreate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		before := time.Now().UTC().Add(-time.Second)

		conv, err := s.Create(ctx, "test-id-123")
		require.NoError(t, err)
		assert.Equal(t, "test-id-123", conv.ID)
		assert.Equal(t, DefaultTitle, conv.Title)
		assert.Empty(t, conv.Messages)
		assert.NotNil(t, conv.Messages)
		assert.True(t, conv.CreatedAt.After(before))

		got, err := s.Get(ctx, "test-id-123")
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, conv.Title, got.Title)
		assert.True(t, conv.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", conv.CreatedAt, got.CreatedAt)
		assert.NotNil(t, got.Messages)

		_, err = s.Create(ctx, "test-id-123")
		assert.ErrorIs(t, err, ErrExists)
	})
}

func TestStoreGetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		conv, err := s.Get(context.Background(), "non-existent")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, conv)
	})
}

func TestStoreInvalidIDs(t *testing.T) {
	ids := []string{"", ".", "..", "../escape", `a\b`, "a/b"}
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range ids {
			_, err := s.Create(ctx, id)
			assert.ErrorIs(t, err, ErrInvalidID, "create %q", id)
			_, err = s.Get(ctx, id)
			assert.ErrorIs(t, err, ErrInvalidID, "get %q", id)
			assert.ErrorIs(t, s.AddUserMessage(ctx, id, "x"), ErrInvalidID, "add %q", id)
			assert.ErrorIs(t, s.UpdateTitle(ctx, id, "x"), ErrInvalidID, "title %q", id)
		}
	})
}

func TestStoreMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Create(ctx, "conv")
		require.NoError(t, err)

		require.NoError(t, s.AddUserMessage(ctx, "conv", "What is the meaning of life?"))
		stage1, stage2, stage3 := sampleStages()
		require.NoError(t, s.AddAssistantMessage(ctx, "conv", stage1, stage2, stage3))
		require.NoError(t, s.AddUserMessage(ctx, "conv", "Follow-up"))

		conv, err := s.Get(ctx, "conv")
		require.NoError(t, err)
		require.Len(t, conv.Messages, 3)

		user := conv.Messages[0]
		assert.Equal(t, "user", user.Role)
		assert.Equal(t, "What is the meaning of life?", user.Content)
		assert.Nil(t, user.Stage1)
		assert.Nil(t, user.Stage3)

		assistant := conv.Messages[1]
		assert.Equal(t, "assistant", assistant.Role)
		assert.Empty(t, assistant.Content)
		require.Len(t, assistant.Stage1, 2)
		assert.Equal(t, "model/a", assistant.Stage1[0].Model)
		assert.JSONEq(t, `{"effort":"high"}`, string(assistant.Stage1[0].Reasoning))
		assert.Equal(t, stage2, assistant.Stage2)
		require.NotNil(t, assistant.Stage3)
		assert.Equal(t, stage3, *assistant.Stage3)

		assert.Equal(t, "Follow-up", conv.Messages[2].Content)
	})
}

func TestStoreKeepsEmptyStages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Create(ctx, "conv")
		require.NoError(t, err)

		stage1, _, _ := sampleStages()
		failed := council.FinalAnswer{Content: council.ChairmanFailedMessage}
		require.NoError(t, s.AddAssistantMessage(ctx, "conv", stage1, nil, failed))

		conv, err := s.Get(ctx, "conv")
		require.NoError(t, err)
		require.Len(t, conv.Messages, 1)
		assistant := conv.Messages[0]
		assert.NotNil(t, assistant.Stage2)
		assert.Empty(t, assistant.Stage2)

		data, err := json.Marshal(assistant)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"stage2":[]`)
	})
}

func TestMessageJSON(t *testing.T) {
	data, err := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(data))

	data, err = json.Marshal(Message{Role: RoleAssistant, Stage3: &council.FinalAnswer{Model: "m", Content: "ok"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","stage1":[],"stage2":[],"stage3":{"model":"m","content":"ok"}}`, string(data))
}

func TestStoreMessagesMissingConversation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		stage1, stage2, stage3 := sampleStages()

		assert.ErrorIs(t, s.AddUserMessage(ctx, "missing", "hi"), ErrNotFound)
		assert.ErrorIs(t, s.AddAssistantMessage(ctx, "missing", stage1, stage2, stage3), ErrNotFound)
		assert.ErrorIs(t, s.UpdateTitle(ctx, "missing", "title"), ErrNotFound)
	})
}

func TestStoreUpdateTitle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Create(ctx, "conv")
		require.NoError(t, err)

		require.NoError(t, s.UpdateTitle(ctx, "conv", "Meaning of Life"))
		// same title again is not an error
		require.NoError(t, s.UpdateTitle(ctx, "conv", "Meaning of Life"))

		conv, err := s.Get(ctx, "conv")
		require.NoError(t, err)
		assert.Equal(t, "Meaning of Life", conv.Title)
	})
}

func TestStoreList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)

		for _, id := range []string{"first", "second", "third"} {
			_, err := s.Create(ctx, id)
			require.NoError(t, err)
			time.Sleep(5 * time.Millisecond)
		}
		require.NoError(t, s.AddUserMessage(ctx, "second", "hello"))
		require.NoError(t, s.UpdateTitle(ctx, "first", "Oldest"))

		list, err = s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)

		assert.Equal(t, []string{"third", "second", "first"}, []string{list[0].ID, list[1].ID, list[2].ID})
		assert.Equal(t, 1, list[1].MessageCount)
		assert.Equal(t, 0, list[0].MessageCount)
		assert.Equal(t, "Oldest", list[2].Title)
	})
}

func TestStoreConcurrentWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Create(ctx, "busy")
		require.NoError(t, err)

		const writers = 20
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.AddUserMessage(ctx, "busy", fmt.Sprintf("message %d", i)))
			}()
		}
		wg.Wait()

		conv, err := s.Get(ctx, "busy")
		require.NoError(t, err)
		assert.Len(t, conv.Messages, writers)
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", t.TempDir())
	assert.Error(t, err)
}
