package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/metrics"
	"github.com/roach88/golfkpi/internal/store"
)

// Finding kinds.
const (
	FindingHashMismatch = "hash_mismatch"
	FindingNotCanonical = "not_canonical"
	FindingUnreadable   = "unreadable"
	FindingForeignKey   = "foreign_key"
)

// Finding sources.
const (
	SourceStore   = "store"
	SourceArchive = "archive"
)

// Finding is one integrity problem. Audits never repair anything.
type Finding struct {
	Source string            `json:"source"`
	Kind   string            `json:"kind"`
	Entity store.ContentKind `json:"entity,omitempty"`
	Key    string            `json:"key"`
	Err    error             `json:"-"`
	Detail string            `json:"detail"`
}

// Auditor recomputes identities of stored and archived bytes.
type Auditor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the logger findings are reported to.
func WithLogger(l *slog.Logger) Option { return func(a *Auditor) { a.logger = l } }

// WithMetrics counts findings.
func WithMetrics(m *metrics.Metrics) Option { return func(a *Auditor) { a.metrics = m } }

// NewAuditor creates an Auditor.
func NewAuditor(opts ...Option) *Auditor {
	a := &Auditor{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuditStore checks every stored artifact: the stored bytes must already
// be canonical and must hash to the stored identity.
func (a *Auditor) AuditStore(ctx context.Context, src Source) ([]Finding, error) {
	var findings []Finding
	for _, kind := range Kinds {
		records, err := src.ListContent(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", kind, err)
		}
		for _, rec := range records {
			if f, bad := a.check(SourceStore, kind, rec.Hash, rec.Hash, rec.Canonical); bad {
				findings = append(findings, f)
			}
		}
	}
	return findings, nil
}

// AuditArchive checks every object in arc against the hash in its key.
func (a *Auditor) AuditArchive(ctx context.Context, arc Archive) ([]Finding, error) {
	keys, err := arc.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, key := range keys {
		kind, hash, ok := ParseKey(key)
		if !ok {
			findings = append(findings, a.report(Finding{
				Source: SourceArchive, Kind: FindingForeignKey, Key: key,
				Detail: "key does not name an artifact",
			}))
			continue
		}
		data, err := arc.Get(ctx, key)
		if err != nil {
			findings = append(findings, a.report(Finding{
				Source: SourceArchive, Kind: FindingUnreadable, Entity: kind, Key: key, Err: err, Detail: err.Error(),
			}))
			continue
		}
		if f, bad := a.check(SourceArchive, kind, key, hash, data); bad {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func (a *Auditor) check(source string, kind store.ContentKind, key, stored string, data []byte) (Finding, bool) {
	canonical, err := canon.Canonicalize(data)
	if err != nil {
		return a.report(Finding{Source: source, Kind: FindingUnreadable, Entity: kind, Key: key, Err: err, Detail: err.Error()}), true
	}
	if !bytes.Equal(canonical, data) {
		return a.report(Finding{Source: source, Kind: FindingNotCanonical, Entity: kind, Key: key,
			Detail: "stored bytes are not in canonical form"}), true
	}
	if computed := canon.Hash(canonical); computed != stored {
		mismatch := &kernel.HashMismatchError{Entity: string(kind), Stored: stored, Computed: computed}
		return a.report(Finding{Source: source, Kind: FindingHashMismatch, Entity: kind, Key: key,
			Err: mismatch, Detail: mismatch.Error()}), true
	}
	return Finding{}, false
}

func (a *Auditor) report(f Finding) Finding {
	a.metrics.AuditFinding(f.Kind, f.Source)
	a.logger.Warn("integrity audit finding", "source", f.Source, "kind", f.Kind, "key", f.Key, "detail", f.Detail)
	return f
}
