package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

func TestLocal_SaveAndOpen(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := store.Save(ctx, "requirements/7", bytes.NewReader(pngData), ImageTypes...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "requirements/7/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(len(pngData)), obj.Size)

	rc, ctype, err := store.Open(ctx, obj.Key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", ctype)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngData, data)
}

func TestLocal_RejectsDisallowedType(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "requirements/1", strings.NewReader("just some text"), ImageTypes...)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocal_AnyTypeWithoutAllowList(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	obj, err := store.Save(context.Background(), "agreements/1", strings.NewReader("plain terms"))
	require.NoError(t, err)
	assert.Contains(t, obj.ContentType, "text/plain")
}

func TestLocal_Delete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := store.Save(ctx, "x", bytes.NewReader(pngData))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, obj.Key))

	_, _, err = store.Open(ctx, obj.Key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, obj.Key), ErrNotFound)
}

func TestLocal_PathTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Open(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, "../outside"), ErrInvalidKey)
	_, _, err = store.Open(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocal_CancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Save(ctx, "x", bytes.NewReader(pngData))
	assert.ErrorIs(t, err, context.Canceled)
}
