package console

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storageRoundTrip(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyLanguage, "nl"))
	v, ok, err := s.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nl", v)

	require.NoError(t, s.Set(ctx, KeyLanguage, "de"))
	v, _, err = s.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, "de", v)

	require.NoError(t, s.Delete(ctx, KeyLanguage))
	require.NoError(t, s.Delete(ctx, KeyLanguage))
	_, ok, err = s.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	storageRoundTrip(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, storageFile), s.Path())

	storageRoundTrip(t, s)

	require.NoError(t, s.Set(context.Background(), KeyRefreshToken, "token"))
	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStorage(dir)
	require.NoError(t, err)
	v, ok, err := reopened.Get(context.Background(), KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token", v)
}

func TestFileStorageCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, storageFile), []byte("{"), 0600))

	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), KeyLanguage)
	assert.Error(t, err)

	c := New(Config{Storage: s})
	assert.Error(t, c.Init(context.Background()))
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("OR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OR_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedisStorage(ctx, "redis://"+addr+"/0", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.client.Del(ctx, s.hash).Err()
		_ = s.Close()
	})

	storageRoundTrip(t, s)
}

func TestConsole(t *testing.T) {
	tests := []struct {
		platform string
		mobile   bool
	}{
		{"", false},
		{"web", false},
		{"Android", true},
		{"ios", true},
		{"cli", false},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			assert.Equal(t, tt.mobile, New(Config{Platform: tt.platform}).IsMobile())
		})
	}
}

func TestConsoleInitAndData(t *testing.T) {
	ctx := context.Background()
	c := New(Config{AutoEnable: true})
	assert.False(t, c.Ready())

	require.NoError(t, c.Init(ctx))
	assert.True(t, c.Ready())
	assert.True(t, c.Enabled())

	require.NoError(t, c.StoreData(ctx, KeyRefreshToken, "abc"))
	v, err := c.RetrieveData(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, c.StoreData(ctx, KeyRefreshToken, ""))
	v, err = c.RetrieveData(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}
