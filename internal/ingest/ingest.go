// Package ingest is the boundary where externally parsed shot records
// become stored facts. It validates each record on its own, stores the
// session with every accepted shot, and classifies each club's shots
// against the template the caller names for it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/clock"
	"github.com/roach88/golfkpi/internal/idgen"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/metrics"
	"github.com/roach88/golfkpi/internal/store"
)

// ShotRecord is one row from a launch monitor export, already parsed.
type ShotRecord struct {
	Club         string   `json:"club"`
	BallSpeed    *float64 `json:"ball_speed,omitempty"`
	SmashFactor  *float64 `json:"smash_factor,omitempty"`
	DescentAngle *float64 `json:"descent_angle,omitempty"`
	SpinRate     *float64 `json:"spin_rate,omitempty"`
}

func (r ShotRecord) shot() classify.Shot {
	return classify.Shot{
		BallSpeed:    r.BallSpeed,
		SmashFactor:  r.SmashFactor,
		DescentAngle: r.DescentAngle,
		SpinRate:     r.SpinRate,
	}
}

// SessionInput describes the session being ingested. An empty ID is
// replaced by a generated one.
type SessionInput struct {
	ID         string `json:"session_id,omitempty"`
	Date       string `json:"session_date"`
	Source     string `json:"source"`
	DeviceType string `json:"device_type,omitempty"`
	Location   string `json:"location,omitempty"`
}

// Rejection explains why one input row was not stored.
type Rejection struct {
	Row    int    `json:"row"`
	Club   string `json:"club"`
	Reason string `json:"reason"`
}

// Report is the outcome of one ingestion.
type Report struct {
	SessionID   string             `json:"session_id"`
	Accepted    int                `json:"accepted"`
	Rejected    int                `json:"rejected"`
	Rejections  []Rejection        `json:"rejections"`
	SubSessions []store.SubSession `json:"subsessions"`

	// Unanalyzed lists clubs whose shots were stored but that had no
	// template assigned.
	Unanalyzed []string `json:"unanalyzed"`
}

// Analyzer ingests sessions and derives club sub-sessions.
type Analyzer struct {
	store      *store.Store
	ids        idgen.Generator
	clock      clock.Clock
	thresholds classify.Thresholds
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option allows configuration of analyzer parameters.
type Option func(*Analyzer)

// WithThresholds sets the sample validity thresholds.
// Default: classify.DefaultThresholds().
func WithThresholds(th classify.Thresholds) Option {
	return func(a *Analyzer) { a.thresholds = th }
}

// WithClock sets the clock for created_at and analyzed_at stamps.
func WithClock(c clock.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithMetrics sets the counters updated by ingestion.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// NewAnalyzer creates an Analyzer over st.
func NewAnalyzer(st *store.Store, ids idgen.Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:      st,
		ids:        ids,
		clock:      clock.System{},
		thresholds: classify.DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ingest validates records, stores the session with every accepted shot,
// and stores one sub-session per club that has a template in templates
// (club label -> template hash; labels match under artifact.NormalizeClub).
//
// The session, its shots and its sub-sessions are stored in one
// transaction, so a failed Ingest leaves nothing behind and can be retried
// with the same session ID.
//
// Bad rows are reported in the Report and skipped; they never abort the
// ingestion. Errors are returned only for problems with the session as a
// whole: invalid session fields, an unknown template, a template assigned
// to the wrong club, or a session ID that already exists.
func (a *Analyzer) Ingest(ctx context.Context, in SessionInput, records []ShotRecord, templates map[string]string) (*Report, error) {
	if err := a.validateSession(in); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	byClub, err := a.loadTemplates(ctx, templates)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	sessionID := in.ID
	if sessionID == "" {
		sessionID = a.ids.Generate()
	}
	report := &Report{SessionID: sessionID, Rejections: []Rejection{}, SubSessions: []store.SubSession{}, Unanalyzed: []string{}}

	var accepted []store.ShotRow
	grouped := make(map[string][]classify.Shot)
	// normalized club -> first label seen
	unanalyzed := make(map[string]string)

	for i, rec := range records {
		club := strings.TrimSpace(rec.Club)
		reject := func(reason string) {
			report.Rejections = append(report.Rejections, Rejection{Row: i, Club: rec.Club, Reason: reason})
		}

		if club == "" {
			reject("club is required")
			continue
		}
		shot := rec.shot()
		if err := shot.Validate(); err != nil {
			reject(err.Error())
			continue
		}

		key := artifact.NormalizeClub(club)
		if tmpl, ok := byClub[key]; ok {
			if _, err := classify.ClassifyShot(shot, tmpl.Template); err != nil {
				reject(err.Error())
				continue
			}
			grouped[key] = append(grouped[key], shot)
		} else if _, seen := unanalyzed[key]; !seen {
			unanalyzed[key] = club
		}

		accepted = append(accepted, store.ShotRow{Index: i, Club: club, Shot: shot})
	}
	report.Accepted = len(accepted)
	report.Rejected = len(report.Rejections)
	a.metrics.ShotsSeen(report.Accepted, report.Rejected)

	now := a.clock.Now().UTC()
	sess := store.Session{
		ID:         sessionID,
		Date:       in.Date,
		Source:     in.Source,
		DeviceType: in.DeviceType,
		Location:   in.Location,
		CreatedAt:  now,
	}
	for _, key := range sortedKeys(grouped) {
		ss, err := a.buildSubSession(sessionID, byClub[key], grouped[key], now)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		report.SubSessions = append(report.SubSessions, *ss)
	}
	if err := a.store.InsertSession(ctx, sess, accepted, report.SubSessions...); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	for _, label := range unanalyzed {
		report.Unanalyzed = append(report.Unanalyzed, label)
	}
	sort.Strings(report.Unanalyzed)

	a.logger.Info("session ingested",
		"session_id", sessionID,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"subsessions", len(report.SubSessions))
	return report, nil
}

// AnalyzeSession classifies the stored shots of one club of an existing
// session against a template and stores the sub-session. Analysing the
// same (session, club, template) twice fails with
// *kernel.DuplicateAnalysisError. The club is the template's club.
func (a *Analyzer) AnalyzeSession(ctx context.Context, sessionID, templateHash string) (*store.SubSession, error) {
	if _, err := a.store.FetchSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("analyze session: %w", err)
	}
	tmpl, err := a.store.FetchTemplate(ctx, templateHash)
	if err != nil {
		return nil, fmt.Errorf("analyze session: %w", err)
	}
	rows, err := a.store.SessionShots(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("analyze session: %w", err)
	}

	key := artifact.NormalizeClub(tmpl.Template.Club)
	var shots []classify.Shot
	for _, row := range rows {
		if artifact.NormalizeClub(row.Club) != key {
			continue
		}
		if _, err := classify.ClassifyShot(row.Shot, tmpl.Template); err != nil {
			a.logger.Debug("shot not gradable under template", "session_id", sessionID, "shot_index", row.Index, "error", err)
			continue
		}
		shots = append(shots, row.Shot)
	}
	if len(shots) == 0 {
		return nil, fmt.Errorf("analyze session: %w",
			kernel.Validationf("club sub-session", "club", "session %s has no gradable %s shots", sessionID, tmpl.Template.Club))
	}

	ss, err := a.buildSubSession(sessionID, tmpl, shots, a.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("analyze session: %w", err)
	}
	if err := a.store.InsertSubSession(ctx, *ss); err != nil {
		return nil, fmt.Errorf("analyze session: %w", err)
	}
	return ss, nil
}

func (a *Analyzer) buildSubSession(sessionID string, tmpl *artifact.StoredTemplate, shots []classify.Shot, at time.Time) (*store.SubSession, error) {
	summary, err := classify.Summarize(shots, tmpl.Template, a.thresholds)
	if err != nil {
		return nil, err
	}
	ss := store.SubSession{
		ID:           a.ids.Generate(),
		SessionID:    sessionID,
		Club:         tmpl.Template.Club,
		TemplateHash: tmpl.Hash,
		Summary:      summary,
		AnalyzedAt:   at,
	}
	return &ss, nil
}

func (a *Analyzer) validateSession(in SessionInput) error {
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return kernel.Validationf("session", "session_date", "must be YYYY-MM-DD, got %q", in.Date)
	}
	if strings.TrimSpace(in.Source) == "" {
		return kernel.Validationf("session", "source", "must not be empty")
	}
	return nil
}

// loadTemplates fetches every assigned template and checks it belongs to
// the club it is assigned to.
func (a *Analyzer) loadTemplates(ctx context.Context, assigned map[string]string) (map[string]*artifact.StoredTemplate, error) {
	out := make(map[string]*artifact.StoredTemplate, len(assigned))
	for club, hash := range assigned {
		tmpl, err := a.store.FetchTemplate(ctx, hash)
		if err != nil {
			if errors.Is(err, kernel.ErrNotFound) {
				return nil, fmt.Errorf("template for club %q: %w", club, err)
			}
			return nil, err
		}
		key := artifact.NormalizeClub(club)
		if artifact.NormalizeClub(tmpl.Template.Club) != key {
			return nil, kernel.Validationf("session", "templates",
				"template %s is for club %q, not %q", hash, tmpl.Template.Club, club)
		}
		if prev, ok := out[key]; ok && prev.Hash != hash {
			return nil, kernel.Validationf("session", "templates",
				"club %q is assigned two templates", club)
		}
		out[key] = tmpl
	}
	return out, nil
}

func sortedKeys(m map[string][]classify.Shot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
