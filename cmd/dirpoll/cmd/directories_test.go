package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dirpoll/internal/blobdir"
	"github.com/Aman-CERP/dirpoll/internal/config"
	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/fsdir"
)

func TestDirectoryOpener_OpenAll(t *testing.T) {
	// Given: local paths and bucket URLs, some naming the same directory
	root := t.TempDir()
	opener := newDirectoryOpener(context.Background(), config.BlobConfig{})

	// When: opening them
	dirs, err := opener.openAll([]string{
		root,
		filepath.Join(root, "."),
		"mem:///in",
		"mem:///in/",
	})

	// Then: each key is opened once with the matching adapter
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.IsType(t, &fsdir.Directory{}, dirs[0])
	assert.Equal(t, root, dirs[0].Key())
	assert.IsType(t, &blobdir.Directory{}, dirs[1])
	assert.Equal(t, "mem:///in/", dirs[1].Key())

	assert.Len(t, opener.closers, 1)
	assert.NoError(t, opener.Close())
	assert.Empty(t, opener.closers)
}

func TestDirectoryOpener_Errors(t *testing.T) {
	opener := newDirectoryOpener(context.Background(), config.BlobConfig{})

	_, err := opener.openAll([]string{"nosuchdriver://bucket/x"})
	assert.Equal(t, apperrors.ErrCodeInvalidPath, apperrors.GetCode(err))

	_, err = opener.key("")
	assert.Equal(t, apperrors.ErrCodeInvalidPath, apperrors.GetCode(err))
}

func TestDirectoryOpener_ResolvesPersistedKeys(t *testing.T) {
	root := t.TempDir()
	opener := newDirectoryOpener(context.Background(), config.BlobConfig{RPS: 5, Burst: 0})
	defer func() { _ = opener.Close() }()

	local, err := opener.resolve(root)
	require.NoError(t, err)
	assert.Equal(t, root, local.Key())

	bucket, err := opener.resolve("mem:///restored/")
	require.NoError(t, err)
	assert.Equal(t, "mem:///restored/", bucket.Key())

	entries, err := bucket.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
