package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/kernel"
)

// ContentKind names a content-addressed artifact kind.
type ContentKind string

const (
	KindTemplate ContentKind = "template"
	KindSnapshot ContentKind = "course_snapshot"
)

// contentTable describes where one content-addressed kind lives.
type contentTable struct {
	kind    ContentKind
	table   string
	hashCol string
}

var (
	templateTable = contentTable{kind: KindTemplate, table: "templates", hashCol: "template_hash"}
	snapshotTable = contentTable{kind: KindSnapshot, table: "course_snapshots", hashCol: "snapshot_hash"}
)

func contentTableFor(kind ContentKind) (contentTable, error) {
	switch kind {
	case KindTemplate:
		return templateTable, nil
	case KindSnapshot:
		return snapshotTable, nil
	default:
		return contentTable{}, fmt.Errorf("unknown content kind %q", kind)
	}
}

// ContentRecord is a stored artifact as raw bytes, without decoding.
type ContentRecord struct {
	Kind      ContentKind
	Hash      string
	Canonical []byte
	CreatedAt string
}

// insertContent writes the parent row of an artifact with ON CONFLICT DO
// NOTHING and, only when that row is new, its child rows, all in one
// transaction. It reports whether anything was inserted.
func (s *Store) insertContent(ctx context.Context, ct contentTable, cols []string, vals []any, children func(*tx) error) (bool, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING`,
		ct.table, strings.Join(cols, ", "), placeholders, ct.hashCol)

	inserted := false
	err := s.runTx(ctx, func(t *tx) error {
		res, err := t.exec(ctx, query, vals...)
		if err != nil {
			return fmt.Errorf("insert: %w", s.classify(err, ct.table, "INSERT"))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		if children != nil {
			if err := children(t); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.metrics.ArtifactWritten(string(ct.kind), inserted)
	return inserted, nil
}

// fetchContent reads the stored hash and canonical bytes of one artifact.
// The hash is returned as stored, never recomputed.
func (s *Store) fetchContent(ctx context.Context, ct contentTable, hash string) (ContentRecord, error) {
	query := fmt.Sprintf(`SELECT %s, canonical_json, created_at FROM %s WHERE %s = ?`,
		ct.hashCol, ct.table, ct.hashCol)

	var rec ContentRecord
	var canonical string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), hash).Scan(&rec.Hash, &canonical, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentRecord{}, fmt.Errorf("%s %s: %w", ct.kind, hash, kernel.ErrNotFound)
	}
	if err != nil {
		return ContentRecord{}, fmt.Errorf("query %s: %w", ct.table, err)
	}
	rec.Kind = ct.kind
	rec.Canonical = []byte(canonical)
	return rec, nil
}

// ListContent returns every stored artifact of a kind ordered by hash.
func (s *Store) ListContent(ctx context.Context, kind ContentKind) ([]ContentRecord, error) {
	ct, err := contentTableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s, canonical_json, created_at FROM %s ORDER BY %s ASC`,
		ct.hashCol, ct.table, ct.hashCol)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ct.table, err)
	}
	defer rows.Close()

	var out []ContentRecord
	for rows.Next() {
		rec := ContentRecord{Kind: kind}
		var canonical string
		if err := rows.Scan(&rec.Hash, &canonical, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", ct.table, err)
		}
		rec.Canonical = []byte(canonical)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", ct.table, err)
	}
	return out, nil
}

// InsertTemplate validates, canonicalizes and stores a template document.
// Storing content that is already present is a no-op that returns the
// existing record with inserted=false. Malformed documents fail with
// *kernel.ValidationError and nothing is stored.
func (s *Store) InsertTemplate(ctx context.Context, raw []byte) (*artifact.StoredTemplate, bool, error) {
	tmpl, err := artifact.ParseTemplate(raw)
	if err != nil {
		return nil, false, fmt.Errorf("insert template: %w", err)
	}
	hash, canonical, err := tmpl.Identity()
	if err != nil {
		return nil, false, fmt.Errorf("insert template: %w", err)
	}

	inserted, err := s.insertContent(ctx, templateTable,
		[]string{"template_hash", "schema_version", "club", "canonical_json", "created_at"},
		[]any{hash, tmpl.SchemaVersion, tmpl.Club, string(canonical), tmpl.CreatedAt},
		nil,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert template: %w", err)
	}
	s.logger.Debug("template stored", "template_hash", hash, "club", tmpl.Club, "inserted", inserted)

	if !inserted {
		existing, err := s.FetchTemplate(ctx, hash)
		if err != nil {
			return nil, false, fmt.Errorf("insert template: %w", err)
		}
		return existing, false, nil
	}
	return &artifact.StoredTemplate{Hash: hash, Canonical: canonical, Template: tmpl}, true, nil
}

// FetchTemplate returns a stored template by identity. The returned hash
// is the stored one; it is not recomputed.
func (s *Store) FetchTemplate(ctx context.Context, hash string) (*artifact.StoredTemplate, error) {
	rec, err := s.fetchContent(ctx, templateTable, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch template: %w", err)
	}
	st, err := artifact.DecodeStoredTemplate(rec.Hash, rec.Canonical)
	if err != nil {
		return nil, fmt.Errorf("fetch template %s: %w", hash, err)
	}
	return st, nil
}

// TemplateInfo summarises a stored template for listings.
type TemplateInfo struct {
	Hash          string `json:"template_hash"`
	Club          string `json:"club"`
	SchemaVersion string `json:"schema_version"`
	CreatedAt     string `json:"created_at"`
	Alias         *Alias `json:"alias,omitempty"`
}

// ListTemplates returns every stored template, optionally restricted to
// clubs matching club under NormalizeClub, ordered by club then hash.
func (s *Store) ListTemplates(ctx context.Context, club string) ([]TemplateInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.template_hash, t.club, t.schema_version, t.created_at,
		       a.display_name, a.notes, a.updated_at
		FROM templates t
		LEFT JOIN template_aliases a ON a.template_hash = t.template_hash
		ORDER BY t.club ASC, t.template_hash ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	want := artifact.NormalizeClub(club)
	var out []TemplateInfo
	for rows.Next() {
		var info TemplateInfo
		var name, notes, updated sql.NullString
		if err := rows.Scan(&info.Hash, &info.Club, &info.SchemaVersion, &info.CreatedAt,
			&name, &notes, &updated); err != nil {
			return nil, fmt.Errorf("list templates: scan: %w", err)
		}
		if club != "" && artifact.NormalizeClub(info.Club) != want {
			continue
		}
		if name.Valid {
			at, err := parseTime(updated.String)
			if err != nil {
				return nil, fmt.Errorf("list templates: %w", err)
			}
			info.Alias = &Alias{TemplateHash: info.Hash, DisplayName: name.String, Notes: notes.String, UpdatedAt: at}
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

// InsertSnapshot validates, canonicalizes and stores a course snapshot
// together with its hole rows.
func (s *Store) InsertSnapshot(ctx context.Context, raw []byte) (*artifact.StoredSnapshot, bool, error) {
	cs, err := artifact.ParseCourseSnapshot(raw)
	if err != nil {
		return nil, false, fmt.Errorf("insert snapshot: %w", err)
	}
	hash, canonical, err := cs.Identity()
	if err != nil {
		return nil, false, fmt.Errorf("insert snapshot: %w", err)
	}

	inserted, err := s.insertContent(ctx, snapshotTable,
		[]string{"snapshot_hash", "course_name", "tee_set", "hole_count", "canonical_json", "created_at"},
		[]any{hash, cs.CourseName, cs.TeeSet, cs.HoleCount, string(canonical), formatTime(s.clock.Now())},
		func(t *tx) error {
			for _, h := range cs.Holes {
				_, err := t.exec(ctx, `
					INSERT INTO course_snapshot_holes (snapshot_hash, hole_number, par, handicap_index)
					VALUES (?, ?, ?, ?)
				`, hash, h.Number, h.Par, h.HandicapIndex)
				if err != nil {
					return fmt.Errorf("insert hole %d: %w", h.Number, s.classify(err, "course_snapshot_holes", "INSERT"))
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert snapshot: %w", err)
	}
	s.logger.Debug("course snapshot stored", "snapshot_hash", hash, "course", cs.CourseName, "inserted", inserted)

	if !inserted {
		existing, err := s.FetchSnapshot(ctx, hash)
		if err != nil {
			return nil, false, fmt.Errorf("insert snapshot: %w", err)
		}
		return existing, false, nil
	}
	return &artifact.StoredSnapshot{Hash: hash, Canonical: canonical, Snapshot: cs}, true, nil
}

// FetchSnapshot returns a stored course snapshot by identity.
func (s *Store) FetchSnapshot(ctx context.Context, hash string) (*artifact.StoredSnapshot, error) {
	rec, err := s.fetchContent(ctx, snapshotTable, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	ss, err := artifact.DecodeStoredSnapshot(rec.Hash, rec.Canonical)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", hash, err)
	}
	return ss, nil
}

// SnapshotHoles reads the relational hole rows of a snapshot ordered by
// hole number.
func (s *Store) SnapshotHoles(ctx context.Context, hash string) ([]artifact.Hole, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT hole_number, par, handicap_index
		FROM course_snapshot_holes
		WHERE snapshot_hash = ?
		ORDER BY hole_number ASC
	`), hash)
	if err != nil {
		return nil, fmt.Errorf("snapshot holes: %w", err)
	}
	defer rows.Close()

	var out []artifact.Hole
	for rows.Next() {
		var h artifact.Hole
		if err := rows.Scan(&h.Number, &h.Par, &h.HandicapIndex); err != nil {
			return nil, fmt.Errorf("snapshot holes: scan: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot holes: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
