package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PerplexityAssistant/internal/session"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := createTestStore(t)

	var key string
	found, err := s.Get(context.Background(), KeyAPIKey, &key)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, key)
}

func TestStore_SetReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyAPIKey, "sk-old"))
	require.NoError(t, s.Set(ctx, KeyAPIKey, "sk-new"))

	var key string
	found, err := s.Get(ctx, KeyAPIKey, &key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sk-new", key)
}

func TestStore_TranscriptRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := session.Transcript{
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: "hi there\nwith \"quotes\" and ünïcode"},
		{Role: session.RoleUser, Content: "again"},
		{Role: session.RoleAssistant, Content: ""},
	}
	require.NoError(t, s.Set(ctx, KeyConversationHistory, want))

	var got session.Transcript
	found, err := s.Get(ctx, KeyConversationHistory, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestStore_Remove(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyPendingQuery, "selected"))
	require.NoError(t, s.Set(ctx, KeyAPIKey, "sk-test"))
	require.NoError(t, s.Remove(ctx, KeyPendingQuery, "never-set"))

	var pending string
	found, err := s.Get(ctx, KeyPendingQuery, &pending)
	require.NoError(t, err)
	assert.False(t, found)

	var key string
	found, err = s.Get(ctx, KeyAPIKey, &key)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyAPIKey, "sk-test"))
	require.NoError(t, s.Close())

	s, err = Open(path, logger)
	require.NoError(t, err)
	defer s.Close()

	var key string
	found, err := s.Get(ctx, KeyAPIKey, &key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sk-test", key)
}
