package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
)

type templateResponse struct {
	Hash      string          `json:"template_hash"`
	Club      string          `json:"club"`
	Alias     *store.Alias    `json:"alias,omitempty"`
	Canonical json.RawMessage `json:"template"`
}

type snapshotResponse struct {
	Hash      string          `json:"snapshot_hash"`
	CoursePar int             `json:"course_par"`
	Canonical json.RawMessage `json:"snapshot"`
}

type sessionResponse struct {
	*store.Session
	Shots       []store.ShotRow    `json:"shots"`
	SubSessions []store.SubSession `json:"subsessions"`
}

type roundResponse struct {
	*store.Round
	Complete bool               `json:"complete"`
	Events   []store.RoundEvent `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Kind: "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "driver": s.store.Driver()})
}

// hashParam reads a path hash and rejects anything that is not an identity.
func hashParam(r *http.Request, name string) (string, error) {
	h := chi.URLParam(r, name)
	if !canon.IsHash(h) {
		return "", kernel.Validationf("request", name, "must be 64 lowercase hex characters")
	}
	return h, nil
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListTemplates(r.Context(), r.URL.Query().Get("club"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if infos == nil {
		infos = []store.TemplateInfo{}
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	hash, err := hashParam(r, "hash")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.store.FetchTemplate(r.Context(), hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := templateResponse{Hash: st.Hash, Club: st.Template.Club, Canonical: st.Canonical}
	alias, err := s.store.GetAlias(r.Context(), hash)
	switch {
	case err == nil:
		resp.Alias = alias
	case !kernel.IsNotFound(err):
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	hash, err := hashParam(r, "hash")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ss, err := s.store.FetchSnapshot(r.Context(), hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshotResponse{Hash: ss.Hash, CoursePar: ss.Snapshot.Par(), Canonical: ss.Canonical})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	sess, err := s.store.FetchSession(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shots, err := s.store.SessionShots(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subs, err := s.store.ListSubSessions(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if shots == nil {
		shots = []store.ShotRow{}
	}
	if subs == nil {
		subs = []store.SubSession{}
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Shots: shots, SubSessions: subs})
}

func (s *Server) handleGetSubSession(w http.ResponseWriter, r *http.Request) {
	hash, err := hashParam(r, "template")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ss, err := s.store.FetchSubSession(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "club"), hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ss)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	round, err := s.store.FetchRound(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.store.RoundEvents(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []store.RoundEvent{}
	}
	complete := false
	for _, ev := range events {
		if ev.Type == store.EventCompleted {
			complete = true
		}
	}
	s.writeJSON(w, http.StatusOK, roundResponse{Round: round, Complete: complete, Events: events})
}

func (s *Server) handleRoundScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.rounds.CurrentScores(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if scores == nil {
		scores = []store.HoleScore{}
	}
	s.writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleScorecard(w http.ResponseWriter, r *http.Request) {
	card, err := s.rounds.Scorecard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleClubStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ClubStats(r.Context(), s.thresholds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []store.ClubStat{}
	}
	s.writeJSON(w, http.StatusOK, stats)
}
