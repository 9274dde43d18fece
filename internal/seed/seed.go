// Package seed loads reference templates and course snapshots from a seed
// directory and stores them through the content-addressed repository.
//
// A seed directory may hold a manifest.yaml listing JSON artifact files,
// CUE files declaring artifacts under top-level "template" and "snapshot"
// fields, or both:
//
//	template: "7-iron baseline": {
//		schema_version: "1.0"
//		club:           "7i"
//		...
//	}
//
// Seeding is explicit: the composition root calls Bootstrap; nothing seeds
// on import or on store open.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/store"
)

// Artifact is one document to seed.
type Artifact struct {
	Kind store.ContentKind
	// Source names where the document came from, for error messages.
	Source string
	Raw    []byte
	// Alias, when set on a template, becomes its display name.
	Alias string
	Notes string
}

// Repository is the subset of the store that seeding writes through.
type Repository interface {
	InsertTemplate(ctx context.Context, raw []byte) (*artifact.StoredTemplate, bool, error)
	InsertSnapshot(ctx context.Context, raw []byte) (*artifact.StoredSnapshot, bool, error)
	SetAlias(ctx context.Context, hash, displayName, notes string) (*store.Alias, error)
}

// Seeded reports the outcome for one artifact.
type Seeded struct {
	Kind     store.ContentKind `json:"kind"`
	Source   string            `json:"source"`
	Hash     string            `json:"hash"`
	Inserted bool              `json:"inserted"`
}

// Bootstrap stores every artifact in order. Re-running it against the
// same store inserts nothing new: content that is already present is
// reported with Inserted=false. The first failure aborts the bootstrap.
func Bootstrap(ctx context.Context, repo Repository, artifacts []Artifact, logger *slog.Logger) ([]Seeded, error) {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]Seeded, 0, len(artifacts))
	for _, a := range artifacts {
		var (
			hash     string
			inserted bool
		)
		switch a.Kind {
		case store.KindTemplate:
			st, ins, err := repo.InsertTemplate(ctx, a.Raw)
			if err != nil {
				return out, fmt.Errorf("seed %s: %w", a.Source, err)
			}
			hash, inserted = st.Hash, ins
			if a.Alias != "" {
				if _, err := repo.SetAlias(ctx, hash, a.Alias, a.Notes); err != nil {
					return out, fmt.Errorf("seed %s: %w", a.Source, err)
				}
			}
		case store.KindSnapshot:
			ss, ins, err := repo.InsertSnapshot(ctx, a.Raw)
			if err != nil {
				return out, fmt.Errorf("seed %s: %w", a.Source, err)
			}
			hash, inserted = ss.Hash, ins
		default:
			return out, fmt.Errorf("seed %s: unknown artifact kind %q", a.Source, a.Kind)
		}

		logger.Info("seeded", "kind", a.Kind, "source", a.Source, "hash", hash, "inserted", inserted)
		out = append(out, Seeded{Kind: a.Kind, Source: a.Source, Hash: hash, Inserted: inserted})
	}
	return out, nil
}
