package assets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := KeyFor("https://cdn.example.com/img/chart.png", "image/png")
	ref, err := store.Put(ctx, key, []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, key, ref)

	exists, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestLocalStore_Missing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "nothing.png")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, "nothing.png")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestLocalStore_RejectsUnsafeKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape.png", "a/b.png", `a\b.png`} {
		_, err := store.Put(context.Background(), key, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestKeyFor(t *testing.T) {
	a := KeyFor("https://cdn.example.com/a.jpeg?w=300", "")
	assert.Equal(t, a, KeyFor("https://cdn.example.com/a.jpeg?w=300", ""))
	assert.Regexp(t, `^[0-9a-f]{16}\.jpeg$`, a)

	assert.Regexp(t, `\.webp$`, KeyFor("https://cdn.example.com/a", "image/webp"))
	assert.Regexp(t, `\.bin$`, KeyFor("https://cdn.example.com/a", ""))
	assert.NotEqual(t, KeyFor("https://cdn.example.com/a.png", ""), KeyFor("https://cdn.example.com/b.png", ""))
}
