package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
	"github.com/roach88/golfkpi/internal/testutil"
)

func seedStore(t *testing.T, s *store.Store) (templateHash, snapshotHash string) {
	t.Helper()
	ctx := context.Background()
	tmpl, _, err := s.InsertTemplate(ctx, []byte(testutil.TemplateBasic))
	require.NoError(t, err)
	snap, _, err := s.InsertSnapshot(ctx, []byte(testutil.Snapshot("Pebble Creek", 9)))
	require.NoError(t, err)
	return tmpl.Hash, snap.Hash
}

func TestExportRestore(t *testing.T) {
	forEachArchive(t, func(t *testing.T, arc Archive) {
		ctx := context.Background()
		src := openStore(t)
		tmplHash, snapHash := seedStore(t, src)

		exported, err := Export(ctx, src, arc, discardLogger())
		require.NoError(t, err)
		require.Len(t, exported, 2)
		assert.Equal(t, "templates/"+tmplHash+".json", exported[0].Key)
		assert.Equal(t, "snapshots/"+snapHash+".json", exported[1].Key)
		assert.True(t, exported[0].Created)

		again, err := Export(ctx, src, arc, discardLogger())
		require.NoError(t, err)
		for _, tr := range again {
			assert.False(t, tr.Created, tr.Key)
		}

		data, err := arc.Get(ctx, exported[0].Key)
		require.NoError(t, err)
		assert.Equal(t, tmplHash, canon.Hash(data))

		dst := openStore(t)
		restored, err := Restore(ctx, arc, dst, discardLogger())
		require.NoError(t, err)
		require.Len(t, restored, 2)

		got, err := dst.FetchTemplate(ctx, tmplHash)
		require.NoError(t, err)
		assert.Equal(t, "7i", got.Template.Club)

		snap, err := dst.FetchSnapshot(ctx, snapHash)
		require.NoError(t, err)
		assert.Equal(t, "Pebble Creek", snap.Snapshot.CourseName)
	})
}

func TestRestore_RejectsMismatchedObject(t *testing.T) {
	ctx := context.Background()
	arc, err := NewFS(t.TempDir())
	require.NoError(t, err)

	// A valid template filed under the wrong identity.
	wrong := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	key, err := Key(store.KindTemplate, wrong)
	require.NoError(t, err)
	_, err = arc.Put(ctx, key, []byte(testutil.TemplateBasic))
	require.NoError(t, err)

	dst := openStore(t)
	_, err = Restore(ctx, arc, dst, discardLogger())
	require.Error(t, err)
	assert.True(t, kernel.IsHashMismatch(err))

	templates, err := dst.ListContent(ctx, store.KindTemplate)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestRestore_SkipsForeignObjects(t *testing.T) {
	ctx := context.Background()
	arc, err := NewFS(t.TempDir())
	require.NoError(t, err)
	_, err = arc.Put(ctx, "templates/README.txt", []byte("notes"))
	require.NoError(t, err)

	out, err := Restore(ctx, arc, openStore(t), discardLogger())
	require.NoError(t, err)
	assert.Empty(t, out)
}
