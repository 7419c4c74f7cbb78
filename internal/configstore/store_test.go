package configstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/config"
	"marketfeed/internal/configstore"
)

func openStore(t *testing.T) *configstore.Store {
	t.Helper()
	s, err := configstore.Open(filepath.Join(t.TempDir(), "data", "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMirrorAndLoad(t *testing.T) {
	t.Parallel()

	// Arrange
	s := openStore(t)
	ctx := context.Background()

	// Act
	require.NoError(t, s.Mirror(ctx, "active", map[string]any{"k": map[string]any{"a": 1}, "name": "x"}))
	require.NoError(t, s.Mirror(ctx, "active", map[string]any{"name": "y"}))
	require.NoError(t, s.Mirror(ctx, "other", map[string]any{"name": "z"}))
	got, err := s.Load(ctx, "active")

	// Assert
	require.NoError(t, err)
	require.Equal(t, map[string]any{"k": map[string]any{"a": float64(1)}, "name": "y"}, got)
}

func TestLoadEmptyDocument(t *testing.T) {
	t.Parallel()

	got, err := openStore(t).Load(context.Background(), "active")

	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Mirror(ctx, "active", map[string]any{"a": 1, "b": 2}))

	require.NoError(t, s.Delete(ctx, "active", "a"))

	got, err := s.Load(ctx, "active")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"b": float64(2)}, got)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := configstore.Open("  ")

	require.Error(t, err)
}

func TestManagerRestoresFromStore(t *testing.T) {
	t.Parallel()

	// Arrange
	s := openStore(t)
	writer := config.NewManager(config.WithMirror(s), config.WithLookup(func(string) (string, bool) { return "", false }))
	writer.UpdateConfig("POLYGON_API_KEY", "persisted")

	// Act
	reader := config.NewManager(config.WithMirror(s), config.WithLookup(func(string) (string, bool) { return "", false }))
	require.NoError(t, reader.Restore(context.Background()))

	// Assert
	require.Equal(t, "persisted", reader.GetConfig("POLYGON_API_KEY", nil))
}
