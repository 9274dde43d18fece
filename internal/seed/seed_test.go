package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
	"github.com/roach88/golfkpi/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "seed.db"),
		store.WithLogger(discardLogger()),
		store.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadManifest(t *testing.T) {
	arts, err := LoadManifest(filepath.Join("testdata", "seed", ManifestFile))
	require.NoError(t, err)
	require.Len(t, arts, 2)

	assert.Equal(t, store.KindTemplate, arts[0].Kind)
	assert.Equal(t, "7-iron baseline", arts[0].Alias)
	assert.Equal(t, "range sessions, winter 2026", arts[0].Notes)
	assert.Equal(t, store.KindSnapshot, arts[1].Kind)
	assert.Empty(t, arts[1].Alias)
}

func TestLoadManifest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		contains string
	}{
		{"missing file field", "templates:\n  - alias: x\n", "file is required"},
		{"missing document", "templates:\n  - file: nope.json\n", "nope.json"},
		{"snapshot alias", "snapshots:\n  - file: s.json\n    alias: x\n", "templates only"},
		{"bad yaml", "templates: [", "parse manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "s.json"), []byte(testutil.Snapshot("X", 9)), 0o644))
			path := filepath.Join(dir, ManifestFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.manifest), 0o644))

			_, err := LoadManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadCUE(t *testing.T) {
	arts, err := LoadCUE(filepath.Join("testdata", "seed"))
	require.NoError(t, err)
	require.Len(t, arts, 2)

	assert.Equal(t, store.KindTemplate, arts[0].Kind)
	assert.Equal(t, "driver baseline", arts[0].Alias)
	tmpl, err := artifact.ParseTemplate(arts[0].Raw)
	require.NoError(t, err)
	assert.Equal(t, "Driver", tmpl.Club)

	assert.Equal(t, store.KindSnapshot, arts[1].Kind)
	snap, err := artifact.ParseCourseSnapshot(arts[1].Raw)
	require.NoError(t, err)
	assert.Equal(t, "Blue", snap.TeeSet)
	assert.Equal(t, 36, snap.Par())
}

func TestLoadCUE_NonConcrete(t *testing.T) {
	_, err := LoadCUE(filepath.Join("testdata", "badcue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestLoadDir(t *testing.T) {
	arts, err := LoadDir(filepath.Join("testdata", "seed"))
	require.NoError(t, err)
	require.Len(t, arts, 4)

	// Manifest entries come first.
	assert.Equal(t, "7-iron baseline", arts[0].Alias)
	assert.Equal(t, "driver baseline", arts[2].Alias)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no manifest.yaml")
}

func TestLoadDir_NotADirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join("testdata", "seed", ManifestFile))
	require.Error(t, err)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	arts, err := LoadDir(filepath.Join("testdata", "seed"))
	require.NoError(t, err)

	first, err := Bootstrap(ctx, s, arts, discardLogger())
	require.NoError(t, err)
	require.Len(t, first, 4)
	for _, r := range first {
		assert.True(t, r.Inserted, r.Source)
	}
	assert.Equal(t, testutil.TemplateBasicHash, first[0].Hash)

	alias, err := s.GetAlias(ctx, testutil.TemplateBasicHash)
	require.NoError(t, err)
	assert.Equal(t, "7-iron baseline", alias.DisplayName)

	second, err := Bootstrap(ctx, s, arts, discardLogger())
	require.NoError(t, err)
	for i, r := range second {
		assert.False(t, r.Inserted, r.Source)
		assert.Equal(t, first[i].Hash, r.Hash)
	}

	templates, err := s.ListContent(ctx, store.KindTemplate)
	require.NoError(t, err)
	assert.Len(t, templates, 2)
}

func TestBootstrap_InvalidArtifact(t *testing.T) {
	s := openStore(t)

	_, err := Bootstrap(context.Background(), s, []Artifact{
		{Kind: store.KindTemplate, Source: "broken.json", Raw: []byte(`{"club":"7i"}`)},
	}, discardLogger())
	require.Error(t, err)
	assert.True(t, kernel.IsValidation(err))
	assert.Contains(t, err.Error(), "broken.json")
}

type failingRepo struct {
	err error
}

func (f *failingRepo) InsertTemplate(context.Context, []byte) (*artifact.StoredTemplate, bool, error) {
	return nil, false, f.err
}

func (f *failingRepo) InsertSnapshot(context.Context, []byte) (*artifact.StoredSnapshot, bool, error) {
	return nil, false, f.err
}

func (f *failingRepo) SetAlias(context.Context, string, string, string) (*store.Alias, error) {
	return nil, f.err
}

func TestBootstrap_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("disk full")
	out, err := Bootstrap(context.Background(), &failingRepo{err: boom}, []Artifact{
		{Kind: store.KindSnapshot, Source: "a.json"},
		{Kind: store.KindSnapshot, Source: "b.json"},
	}, nil)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "a.json")
}

func TestBootstrap_UnknownKind(t *testing.T) {
	_, err := Bootstrap(context.Background(), &failingRepo{}, []Artifact{{Kind: "glove", Source: "g"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown artifact kind")
}
