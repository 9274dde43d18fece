package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
)

// Kinds lists the archived content kinds in export order.
var Kinds = []store.ContentKind{store.KindTemplate, store.KindSnapshot}

// Source lists stored artifacts as raw canonical bytes.
type Source interface {
	ListContent(ctx context.Context, kind store.ContentKind) ([]store.ContentRecord, error)
}

// Sink accepts artifacts restored from an archive.
type Sink interface {
	InsertTemplate(ctx context.Context, raw []byte) (*artifact.StoredTemplate, bool, error)
	InsertSnapshot(ctx context.Context, raw []byte) (*artifact.StoredSnapshot, bool, error)
}

// Transfer reports one copied object.
type Transfer struct {
	Key     string `json:"key"`
	Created bool   `json:"created"`
}

// Export copies every stored artifact into arc. Objects already present
// are left untouched.
func Export(ctx context.Context, src Source, arc Archive, logger *slog.Logger) ([]Transfer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var out []Transfer
	for _, kind := range Kinds {
		records, err := src.ListContent(ctx, kind)
		if err != nil {
			return out, fmt.Errorf("export %s: %w", kind, err)
		}
		for _, rec := range records {
			key, err := Key(kind, rec.Hash)
			if err != nil {
				return out, err
			}
			created, err := arc.Put(ctx, key, rec.Canonical)
			if err != nil {
				return out, err
			}
			out = append(out, Transfer{Key: key, Created: created})
		}
	}
	logger.Info("archive export complete", "driver", arc.Driver(), "objects", len(out))
	return out, nil
}

// Restore inserts every archived artifact into dst. The identity computed
// by the store must equal the hash in the object key; an object whose
// bytes hash differently is reported as a HashMismatchError and nothing
// further is restored.
func Restore(ctx context.Context, arc Archive, dst Sink, logger *slog.Logger) ([]Transfer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var out []Transfer
	for _, kind := range Kinds {
		keys, err := arc.List(ctx, Prefix(kind))
		if err != nil {
			return out, err
		}
		for _, key := range keys {
			_, want, ok := ParseKey(key)
			if !ok {
				logger.Warn("skipping foreign archive object", "key", key)
				continue
			}
			data, err := arc.Get(ctx, key)
			if err != nil {
				return out, err
			}

			// Verify before inserting so a corrupt object never lands.
			hash, err := identity(kind, data)
			if err != nil {
				return out, fmt.Errorf("restore %s: %w", key, err)
			}
			if hash != want {
				return out, &kernel.HashMismatchError{Entity: key, Stored: want, Computed: hash}
			}

			var created bool
			switch kind {
			case store.KindTemplate:
				_, created, err = dst.InsertTemplate(ctx, data)
			case store.KindSnapshot:
				_, created, err = dst.InsertSnapshot(ctx, data)
			}
			if err != nil {
				return out, fmt.Errorf("restore %s: %w", key, err)
			}
			out = append(out, Transfer{Key: key, Created: created})
		}
	}
	logger.Info("archive restore complete", "driver", arc.Driver(), "objects", len(out))
	return out, nil
}

// identity parses an artifact document and returns its content hash.
func identity(kind store.ContentKind, data []byte) (string, error) {
	switch kind {
	case store.KindTemplate:
		t, err := artifact.ParseTemplate(data)
		if err != nil {
			return "", err
		}
		hash, _, err := t.Identity()
		return hash, err
	case store.KindSnapshot:
		cs, err := artifact.ParseCourseSnapshot(data)
		if err != nil {
			return "", err
		}
		hash, _, err := cs.Identity()
		return hash, err
	default:
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
}
