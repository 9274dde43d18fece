package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/ingest"
	"github.com/roach88/golfkpi/internal/lifecycle"
	"github.com/roach88/golfkpi/internal/store"
)

type opFunc func(h *Harness, ctx context.Context, args map[string]any) (map[string]any, error)

var operations = map[string]opFunc{
	"template.add":       (*Harness).templateAdd,
	"template.alias":     (*Harness).templateAlias,
	"snapshot.add":       (*Harness).snapshotAdd,
	"classify.shot":      (*Harness).classifyShot,
	"session.ingest":     (*Harness).sessionIngest,
	"subsession.analyze": (*Harness).subsessionAnalyze,
	"projection.refresh": (*Harness).projectionRefresh,
	"round.create":       (*Harness).roundCreate,
	"round.score":        (*Harness).roundScore,
	"round.complete":     (*Harness).roundComplete,
	"round.scorecard":    (*Harness).roundScorecard,
	"store.exec":         (*Harness).storeExec,
}

func (h *Harness) templateAdd(ctx context.Context, args map[string]any) (map[string]any, error) {
	raw, err := h.fixture(h.scenario.Templates, args, "template")
	if err != nil {
		return nil, err
	}
	st, inserted, err := h.store.InsertTemplate(ctx, raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{"club": st.Template.Club, "inserted": inserted}, nil
}

func (h *Harness) templateAlias(ctx context.Context, args map[string]any) (map[string]any, error) {
	hash, err := h.templateHash(args)
	if err != nil {
		return nil, err
	}
	name, err := argString(args, "alias")
	if err != nil {
		return nil, err
	}
	alias, err := h.store.SetAlias(ctx, hash, name, optString(args, "notes"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"display_name": alias.DisplayName}, nil
}

func (h *Harness) snapshotAdd(ctx context.Context, args map[string]any) (map[string]any, error) {
	raw, err := h.fixture(h.scenario.Snapshots, args, "snapshot")
	if err != nil {
		return nil, err
	}
	ss, inserted, err := h.store.InsertSnapshot(ctx, raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"course_name": ss.Snapshot.CourseName,
		"hole_count":  ss.Snapshot.HoleCount,
		"par":         ss.Snapshot.Par(),
		"inserted":    inserted,
	}, nil
}

func (h *Harness) classifyShot(_ context.Context, args map[string]any) (map[string]any, error) {
	raw, err := h.fixture(h.scenario.Templates, args, "template")
	if err != nil {
		return nil, err
	}
	tmpl, err := artifact.ParseTemplate(raw)
	if err != nil {
		return nil, err
	}
	var shot classify.Shot
	if err := decodeArg(args, "shot", &shot); err != nil {
		return nil, err
	}

	res, err := classify.ClassifyShot(shot, tmpl)
	if err != nil {
		return nil, err
	}
	metrics := make(map[string]any, len(res.Metrics))
	for _, mg := range res.Metrics {
		metrics[string(mg.Metric)] = mg.Grade.String()
	}
	return map[string]any{"grade": res.Grade.String(), "metrics": metrics}, nil
}

func (h *Harness) sessionIngest(ctx context.Context, args map[string]any) (map[string]any, error) {
	var in ingest.SessionInput
	var err error
	if in.ID, err = argString(args, "session"); err != nil {
		return nil, err
	}
	if in.Date, err = argString(args, "date"); err != nil {
		return nil, err
	}
	in.Source = optString(args, "source")
	in.DeviceType = optString(args, "device")
	in.Location = optString(args, "location")

	var records []ingest.ShotRecord
	if err := decodeArg(args, "shots", &records); err != nil {
		return nil, err
	}

	var names map[string]string
	if _, ok := args["templates"]; ok {
		if err := decodeArg(args, "templates", &names); err != nil {
			return nil, err
		}
	}
	assigned := make(map[string]string, len(names))
	for club, name := range names {
		hash, err := h.resolveTemplate(name)
		if err != nil {
			return nil, err
		}
		assigned[club] = hash
	}

	report, err := h.analyzer.Ingest(ctx, in, records, assigned)
	if err != nil {
		return nil, err
	}

	rows := make([]any, 0, len(report.Rejections))
	for _, r := range report.Rejections {
		rows = append(rows, r.Row)
	}
	subs := make([]any, 0, len(report.SubSessions))
	for _, ss := range report.SubSessions {
		subs = append(subs, subSessionDigest(ss))
	}
	return map[string]any{
		"accepted":      report.Accepted,
		"rejected":      report.Rejected,
		"rejected_rows": rows,
		"unanalyzed":    report.Unanalyzed,
		"subsessions":   subs,
	}, nil
}

func (h *Harness) subsessionAnalyze(ctx context.Context, args map[string]any) (map[string]any, error) {
	session, err := argString(args, "session")
	if err != nil {
		return nil, err
	}
	hash, err := h.templateHash(args)
	if err != nil {
		return nil, err
	}
	ss, err := h.analyzer.AnalyzeSession(ctx, session, hash)
	if err != nil {
		return nil, err
	}
	return subSessionDigest(*ss), nil
}

func (h *Harness) projectionRefresh(ctx context.Context, _ map[string]any) (map[string]any, error) {
	stats, err := h.store.RefreshProjections(ctx, h.thresholds)
	if err != nil {
		return nil, err
	}
	clubs := make([]any, 0, len(stats))
	for _, cs := range stats {
		d := map[string]any{
			"club":       cs.Club,
			"sessions":   cs.Sessions,
			"shot_count": cs.ShotCount,
			"a_count":    cs.ACount,
			"b_count":    cs.BCount,
			"c_count":    cs.CCount,
			"validity":   string(cs.Validity),
		}
		if cs.APercentage != nil {
			d["a_percentage"] = *cs.APercentage
		}
		clubs = append(clubs, d)
	}
	return map[string]any{"clubs": clubs}, nil
}

func (h *Harness) roundCreate(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := argString(args, "round")
	if err != nil {
		return nil, err
	}
	if _, dup := h.roundIDs[name]; dup {
		return nil, &argError{key: "round", msg: fmt.Sprintf("round name %q already used", name)}
	}
	snapName, err := argString(args, "snapshot")
	if err != nil {
		return nil, err
	}
	hash, err := h.resolveSnapshot(snapName)
	if err != nil {
		return nil, err
	}
	date, err := argString(args, "date")
	if err != nil {
		return nil, err
	}
	var players []string
	if err := decodeArg(args, "players", &players); err != nil {
		return nil, err
	}

	r, err := h.rounds.CreateRound(ctx, hash, date, players)
	if err != nil {
		return nil, err
	}
	h.roundIDs[name] = r.ID
	return map[string]any{"players": len(r.Players)}, nil
}

func (h *Harness) roundScore(ctx context.Context, args map[string]any) (map[string]any, error) {
	in := lifecycle.ScoreInput{RoundID: h.roundID(args)}
	var err error
	if in.PlayerIndex, err = argInt(args, "player"); err != nil {
		return nil, err
	}
	if in.HoleNumber, err = argInt(args, "hole"); err != nil {
		return nil, err
	}
	if in.Strokes, err = argInt(args, "strokes"); err != nil {
		return nil, err
	}
	if _, ok := args["putts"]; ok {
		putts, err := argInt(args, "putts")
		if err != nil {
			return nil, err
		}
		in.Putts = &putts
	}

	hs, err := h.rounds.RecordScore(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{"score_id": hs.ScoreID}, nil
}

func (h *Harness) roundComplete(ctx context.Context, args map[string]any) (map[string]any, error) {
	if _, err := h.rounds.CompleteRound(ctx, h.roundID(args)); err != nil {
		return nil, err
	}
	return map[string]any{"complete": true}, nil
}

func (h *Harness) roundScorecard(ctx context.Context, args map[string]any) (map[string]any, error) {
	card, err := h.rounds.Scorecard(ctx, h.roundID(args))
	if err != nil {
		return nil, err
	}
	players := make([]any, 0, len(card.Players))
	for _, p := range card.Players {
		players = append(players, map[string]any{
			"name":         p.Name,
			"holes_played": p.HolesPlayed,
			"strokes":      p.Strokes,
			"putts":        p.Putts,
			"to_par":       p.ToPar,
		})
	}
	return map[string]any{
		"complete":   card.Complete,
		"course_par": card.CoursePar,
		"players":    players,
	}, nil
}

func (h *Harness) storeExec(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := argString(args, "sql")
	if err != nil {
		return nil, err
	}
	res, err := h.store.Exec(ctx, query)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows_affected": n}, nil
}

func subSessionDigest(ss store.SubSession) map[string]any {
	d := map[string]any{
		"club":       ss.Club,
		"shot_count": ss.ShotCount,
		"a_count":    ss.ACount,
		"b_count":    ss.BCount,
		"c_count":    ss.CCount,
		"validity":   string(ss.Validity),
	}
	if ss.APercentage != nil {
		d["a_percentage"] = *ss.APercentage
	}
	return d
}

// fixture returns the JSON of the fixture named by args[key].
func (h *Harness) fixture(fixtures map[string]any, args map[string]any, key string) ([]byte, error) {
	name, err := argString(args, key)
	if err != nil {
		return nil, err
	}
	doc, ok := fixtures[name]
	if !ok {
		return nil, &argError{key: key, msg: fmt.Sprintf("no %s fixture named %q", key, name)}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &argError{key: key, msg: err.Error()}
	}
	return raw, nil
}

func (h *Harness) templateHash(args map[string]any) (string, error) {
	name, err := argString(args, "template")
	if err != nil {
		return "", err
	}
	return h.resolveTemplate(name)
}

// resolveTemplate returns the hash of a named fixture, or name itself when
// it is already a hash.
func (h *Harness) resolveTemplate(name string) (string, error) {
	if doc, ok := h.scenario.Templates[name]; ok {
		return fixtureHash(doc, name, func(raw []byte) (identity, error) { return artifact.ParseTemplate(raw) })
	}
	if canon.IsHash(name) {
		return name, nil
	}
	return "", &argError{key: "template", msg: fmt.Sprintf("no template fixture named %q", name)}
}

func (h *Harness) resolveSnapshot(name string) (string, error) {
	if doc, ok := h.scenario.Snapshots[name]; ok {
		return fixtureHash(doc, name, func(raw []byte) (identity, error) { return artifact.ParseCourseSnapshot(raw) })
	}
	if canon.IsHash(name) {
		return name, nil
	}
	return "", &argError{key: "snapshot", msg: fmt.Sprintf("no snapshot fixture named %q", name)}
}

type identity interface {
	Identity() (string, []byte, error)
}

func fixtureHash(doc any, name string, parse func([]byte) (identity, error)) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", &argError{key: name, msg: err.Error()}
	}
	a, err := parse(raw)
	if err != nil {
		return "", &argError{key: name, msg: "fixture is not a valid artifact: " + err.Error()}
	}
	hash, _, err := a.Identity()
	if err != nil {
		return "", &argError{key: name, msg: err.Error()}
	}
	return hash, nil
}

// roundID maps a round name to its generated ID. Unknown names are passed
// through so that lookups of missing rounds can be exercised.
func (h *Harness) roundID(args map[string]any) string {
	name := optString(args, "round")
	if id, ok := h.roundIDs[name]; ok {
		return id
	}
	return name
}

// argError reports a malformed scenario argument. It aborts the run
// instead of becoming a completion case.
type argError struct {
	key string
	msg string
}

func (e *argError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.key, e.msg)
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", &argError{key: key, msg: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{key: key, msg: fmt.Sprintf("must be a string, got %T", v)}
	}
	return s, nil
}

func optString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case nil:
		return 0, &argError{key: key, msg: "is required"}
	}
	return 0, &argError{key: key, msg: fmt.Sprintf("must be an integer, got %v", args[key])}
}

// decodeArg converts args[key] into out through JSON.
func decodeArg(args map[string]any, key string, out any) error {
	v, ok := args[key]
	if !ok {
		return &argError{key: key, msg: "is required"}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return &argError{key: key, msg: err.Error()}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &argError{key: key, msg: err.Error()}
	}
	return nil
}
