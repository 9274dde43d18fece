package archive

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/metrics"
	"github.com/roach88/golfkpi/internal/store"
	fixtures "github.com/roach88/golfkpi/internal/testutil"
)

func TestAuditStore_Clean(t *testing.T) {
	s := openStore(t)
	seedStore(t, s)

	findings, err := NewAuditor(WithLogger(discardLogger())).AuditStore(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestAuditStore_Findings(t *testing.T) {
	canonical, err := canon.Canonicalize([]byte(fixtures.TemplateBasic))
	require.NoError(t, err)
	tampered := []byte(`{"club":"7i"}`)

	src := fakeSource{
		store.KindTemplate: {
			{Kind: store.KindTemplate, Hash: fixtures.TemplateBasicHash, Canonical: canonical},
			{Kind: store.KindTemplate, Hash: fixtures.TemplateBasicHash, Canonical: tampered},
			{Kind: store.KindTemplate, Hash: canon.Hash(canonical), Canonical: []byte(fixtures.TemplateBasic)},
			{Kind: store.KindTemplate, Hash: fixtures.TemplateBasicHash, Canonical: []byte(`{"club":`)},
		},
	}

	m := metrics.New()
	findings, err := NewAuditor(WithLogger(discardLogger()), WithMetrics(m)).AuditStore(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, FindingHashMismatch, findings[0].Kind)
	assert.True(t, kernel.IsHashMismatch(findings[0].Err))
	assert.Equal(t, FindingNotCanonical, findings[1].Kind)
	assert.Equal(t, FindingUnreadable, findings[2].Kind)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditFindings.WithLabelValues(FindingHashMismatch, SourceStore)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditFindings.WithLabelValues(FindingNotCanonical, SourceStore)))
}

func TestAuditArchive(t *testing.T) {
	forEachArchive(t, func(t *testing.T, arc Archive) {
		ctx := context.Background()
		s := openStore(t)
		seedStore(t, s)
		_, err := Export(ctx, s, arc, discardLogger())
		require.NoError(t, err)

		auditor := NewAuditor(WithLogger(discardLogger()))
		findings, err := auditor.AuditArchive(ctx, arc)
		require.NoError(t, err)
		assert.Empty(t, findings)

		wrong := "0000000000000000000000000000000000000000000000000000000000000000"
		key, err := Key(store.KindSnapshot, wrong)
		require.NoError(t, err)
		canonical, err := canon.Canonicalize([]byte(fixtures.Snapshot("Other", 9)))
		require.NoError(t, err)
		_, err = arc.Put(ctx, key, canonical)
		require.NoError(t, err)
		_, err = arc.Put(ctx, "stray.txt", []byte("x"))
		require.NoError(t, err)

		findings, err = auditor.AuditArchive(ctx, arc)
		require.NoError(t, err)
		require.Len(t, findings, 2)

		byKey := map[string]string{}
		for _, f := range findings {
			byKey[f.Key] = f.Kind
		}
		assert.Equal(t, FindingHashMismatch, byKey[key])
		assert.Equal(t, FindingForeignKey, byKey["stray.txt"])
	})
}
