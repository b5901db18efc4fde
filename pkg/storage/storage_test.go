package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestStorageFS(t *testing.T) {
	ctx := context.Background()
	fs, err := NewStorageFS(logs.NewTestingLog(t), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, WriteFile(ctx, fs, "uploads/1.jpg", bytes.NewReader([]byte("hello"))))
	b, err := ReadFile(ctx, fs, "uploads/1.jpg")
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	require.NoError(t, fs.DeleteFile(ctx, "uploads/1.jpg"))
	_, err = fs.ReadFile(ctx, "uploads/1.jpg")
	require.True(t, os.IsNotExist(err))

	_, err = fs.WriteFile(ctx, "../escape.jpg")
	require.True(t, errors.Is(err, ErrInvalidName))
	_, err = fs.ReadFile(ctx, "")
	require.True(t, errors.Is(err, ErrInvalidName))
}

func TestParseURI(t *testing.T) {
	cases := []struct {
		uri      string
		scheme   string
		location string
	}{
		{"store:uploads/2.jpg", "store", "uploads/2.jpg"},
		{"file:///tmp/a.jpg", "file", "/tmp/a.jpg"},
		{"/tmp/a.jpg", "file", "/tmp/a.jpg"},
		{"relative/a.jpg", "file", "relative/a.jpg"},
		{`C:\photos\a.jpg`, "file", `C:\photos\a.jpg`},
	}
	for _, c := range cases {
		scheme, location, err := ParseURI(c.uri)
		require.NoError(t, err, c.uri)
		require.Equal(t, c.scheme, scheme, c.uri)
		require.Equal(t, c.location, location, c.uri)
	}

	_, _, err := ParseURI("http://example.com/a.jpg")
	require.True(t, errors.Is(err, ErrUnsupportedURI))
	_, _, err = ParseURI("")
	require.True(t, errors.Is(err, ErrUnsupportedURI))
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewStorageFS(logs.NewTestingLog(t), filepath.Join(root, "store"))
	require.NoError(t, err)
	require.NoError(t, WriteFile(ctx, fs, "a.jpg", bytes.NewReader([]byte("from store"))))

	plain := filepath.Join(root, "plain.jpg")
	require.NoError(t, os.WriteFile(plain, []byte("from disk"), 0644))

	r := NewResolver(fs)
	b, err := ReadAll(ctx, r, StoreURI("a.jpg"))
	require.NoError(t, err)
	require.Equal(t, "from store", string(b))

	b, err = ReadAll(ctx, r, plain)
	require.NoError(t, err)
	require.Equal(t, "from disk", string(b))

	b, err = ReadAll(ctx, r, "file://"+plain)
	require.NoError(t, err)
	require.Equal(t, "from disk", string(b))

	// Deleting a plain file is a no-op
	require.NoError(t, r.Delete(ctx, plain))
	_, err = os.Stat(plain)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, StoreURI("a.jpg")))
	_, err = ReadAll(ctx, r, StoreURI("a.jpg"))
	require.Error(t, err)

	noStore := NewResolver(nil)
	_, err = noStore.Open(ctx, StoreURI("a.jpg"))
	require.True(t, errors.Is(err, ErrUnsupportedURI))
}
