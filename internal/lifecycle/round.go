package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
)

const dateLayout = "2006-01-02"

// CreateRound starts a round on a stored course snapshot. Players are
// indexed in the order given. The round and its roster are written
// atomically.
func (s *Service) CreateRound(ctx context.Context, snapshotHash, date string, players []string) (*store.Round, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("create round: %w",
			kernel.Validationf("round", "round_date", "must be YYYY-MM-DD, got %q", date))
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("create round: %w",
			kernel.Validationf("round", "players", "at least one player is required"))
	}

	r := &store.Round{
		ID:           s.ids.Generate(),
		SnapshotHash: snapshotHash,
		Date:         date,
		CreatedAt:    s.clock.Now().UTC(),
	}
	for i, name := range players {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("create round: %w",
				kernel.Validationf("round", fmt.Sprintf("players[%d]", i), "must not be empty"))
		}
		r.Players = append(r.Players, store.Player{Index: i, Name: name})
	}

	if err := s.store.InsertRound(ctx, *r); err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}
	s.logger.Info("round created", "round_id", r.ID, "snapshot_hash", snapshotHash, "players", len(players))
	return r, nil
}

// CompleteRound appends the completion event of a round. Completing a
// round twice fails with *kernel.DuplicateAnalysisError and leaves the
// first event in place.
func (s *Service) CompleteRound(ctx context.Context, roundID string) (*store.RoundEvent, error) {
	if _, err := s.store.FetchRound(ctx, roundID); err != nil {
		return nil, fmt.Errorf("complete round: %w", err)
	}

	ev := &store.RoundEvent{
		ID:         s.ids.Generate(),
		RoundID:    roundID,
		Type:       store.EventCompleted,
		RecordedAt: s.clock.Now().UTC(),
	}
	if err := s.store.InsertRoundEvent(ctx, *ev); err != nil {
		return nil, fmt.Errorf("complete round: %w", err)
	}
	s.logger.Info("round completed", "round_id", roundID)
	return ev, nil
}

// IsComplete reports whether a round has a completion event.
func (s *Service) IsComplete(ctx context.Context, roundID string) (bool, error) {
	done, err := s.store.HasRoundEvent(ctx, roundID, store.EventCompleted)
	if err != nil {
		return false, fmt.Errorf("is complete: %w", err)
	}
	return done, nil
}
