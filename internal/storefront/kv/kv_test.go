package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, CartKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, CartKey, []byte(`[{"id":"p1","quantity":2}]`)))
	require.NoError(t, s.Set(ctx, TokenKey, []byte("abc")))

	got, err := s.Get(ctx, CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p1","quantity":2}]`, string(got))

	require.NoError(t, s.Set(ctx, CartKey, []byte(`[]`)))
	got, err = s.Get(ctx, CartKey)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, s.Delete(ctx, CartKey))
	require.NoError(t, s.Delete(ctx, CartKey))
	_, err = s.Get(ctx, CartKey)
	assert.ErrorIs(t, err, ErrNotFound)

	tok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(tok))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, TokenKey, []byte("tok")))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok", string(got))
}

func TestFileStore_CorruptDocumentIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	ctx := context.Background()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Get(ctx, CartKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, CartKey, []byte("[]")))
	got, err := s.Get(ctx, CartKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "device-1")
	exerciseStore(t, s)

	assert.True(t, mr.Exists("shop:device-1:token"))
	assert.Equal(t, SessionTTL, mr.TTL("shop:device-1:token"))

	other := NewRedisStore(client, "device-2")
	_, err := other.Get(context.Background(), TokenKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
