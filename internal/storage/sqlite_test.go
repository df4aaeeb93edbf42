package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "council.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, s.AddUserMessage(ctx, "persisted", "hello"))
	stage1, stage2, stage3 := sampleStages()
	require.NoError(t, s.AddAssistantMessage(ctx, "persisted", stage1, stage2, stage3))
	require.NoError(t, s.UpdateTitle(ctx, "persisted", "Persisted"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	conv, err := s.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, stage2, conv.Messages[1].Stage2)
}

func TestSQLiteStoreEmptyStages(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "council.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Create(ctx, "conv")
	require.NoError(t, err)
	_, _, stage3 := sampleStages()
	require.NoError(t, s.AddAssistantMessage(ctx, "conv", nil, nil, stage3))

	conv, err := s.Get(ctx, "conv")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Empty(t, conv.Messages[0].Stage1)
	assert.Empty(t, conv.Messages[0].Stage2)
	assert.Equal(t, stage3.Content, conv.Messages[0].Stage3.Content)
}
