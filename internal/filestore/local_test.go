package filestore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqna/internal/config"
)

func newLocalTestStore(t *testing.T) Store {
	store, err := New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	return store
}

func TestLocalStore_SaveAndOpen(t *testing.T) {
	store := newLocalTestStore(t)
	content := []byte("raw upload body")
	err := store.Save(context.Background(), "u1/c1/doc.txt", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	rc, err := store.Open(context.Background(), "u1/c1/doc.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, data)
}

func TestLocalStore_OpenMissing(t *testing.T) {
	store := newLocalTestStore(t)
	_, err := store.Open(context.Background(), "u1/c1/nope.txt")
	require.Error(t, err)
}

func TestLocalStore_RejectsBadKeys(t *testing.T) {
	store := newLocalTestStore(t)
	for _, key := range []string{"", "/abs", "a//b", "u1/../etc", "u1/c1/.", `u1\c1`} {
		err := store.Save(context.Background(), key, bytes.NewReader([]byte("x")), 1)
		require.Error(t, err, "key %q", key)
		_, err = store.Open(context.Background(), key)
		require.Error(t, err, "key %q", key)
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
}
