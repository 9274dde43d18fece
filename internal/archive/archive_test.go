package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
	"github.com/roach88/golfkpi/internal/testutil"
)

func TestKey(t *testing.T) {
	key, err := Key(store.KindTemplate, testutil.TemplateBasicHash)
	require.NoError(t, err)
	assert.Equal(t, "templates/"+testutil.TemplateBasicHash+".json", key)

	kind, hash, ok := ParseKey(key)
	require.True(t, ok)
	assert.Equal(t, store.KindTemplate, kind)
	assert.Equal(t, testutil.TemplateBasicHash, hash)

	key, err = Key(store.KindSnapshot, testutil.TemplateBasicHash)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "snapshots/"))
}

func TestKey_Rejects(t *testing.T) {
	_, err := Key(store.KindTemplate, "ABC")
	assert.Error(t, err)
	_, err = Key("glove", testutil.TemplateBasicHash)
	assert.Error(t, err)

	for _, key := range []string{"templates/short.json", "other/" + testutil.TemplateBasicHash + ".json", "templates/" + testutil.TemplateBasicHash} {
		_, _, ok := ParseKey(key)
		assert.False(t, ok, key)
	}
}

func TestArchive_PutGetList(t *testing.T) {
	forEachArchive(t, func(t *testing.T, arc Archive) {
		ctx := context.Background()

		created, err := arc.Put(ctx, "templates/a.json", []byte(`{"a":1}`))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = arc.Put(ctx, "templates/a.json", []byte(`{"a":2}`))
		require.NoError(t, err)
		assert.False(t, created, "existing keys are never overwritten")

		data, err := arc.Get(ctx, "templates/a.json")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(data))

		for _, k := range []string{"templates/c.json", "templates/b.json", "snapshots/x.json"} {
			_, err := arc.Put(ctx, k, []byte(`{}`))
			require.NoError(t, err)
		}

		keys, err := arc.List(ctx, "templates/")
		require.NoError(t, err)
		assert.Equal(t, []string{"templates/a.json", "templates/b.json", "templates/c.json"}, keys)

		all, err := arc.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestArchive_GetMissing(t *testing.T) {
	forEachArchive(t, func(t *testing.T, arc Archive) {
		_, err := arc.Get(context.Background(), "templates/missing.json")
		require.Error(t, err)
		assert.True(t, kernel.IsNotFound(err))
	})
}

func TestFS_SanitizeKey(t *testing.T) {
	arc, err := NewFS(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "  ", "../escape.json", "/abs.json", "a/../../b"} {
		_, err := arc.Put(context.Background(), key, []byte("x"))
		assert.Error(t, err, "key %q", key)
	}
}

func TestFS_ListSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	arc, err := NewFS(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", ".tmp-123"), []byte("partial"), 0o644))

	keys, err := arc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	require.Error(t, err)
}

func TestS3_ListPaginates(t *testing.T) {
	arc, fake := newTestS3(t)
	ctx := context.Background()
	for _, k := range []string{"snapshots/1.json", "snapshots/2.json", "snapshots/3.json"} {
		_, err := arc.Put(ctx, k, []byte(`{}`))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, fake.puts)

	keys, err := arc.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/1.json", "snapshots/2.json", "snapshots/3.json"}, keys)
}
