package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/lifecycle"
	"github.com/roach88/golfkpi/internal/store"
)

// NewRoundCommand creates the round command group.
func NewRoundCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Create rounds, record scores and read scorecards",
	}
	cmd.AddCommand(newRoundCreateCommand(rootOpts))
	cmd.AddCommand(newRoundCompleteCommand(rootOpts))
	cmd.AddCommand(newRoundScoreCommand(rootOpts))
	cmd.AddCommand(newRoundScoresCommand(rootOpts))
	cmd.AddCommand(newRoundScorecardCommand(rootOpts))
	return cmd
}

func newRoundCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var snapshot, date string
	var players []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a round on a stored course snapshot",
		Long: `Create a round. The round references the snapshot by hash and its pars
never change, whatever later happens to the course.

Example:
  golfkpi round create --snapshot <hash> --date 2026-01-15 --player Alex --player Sam`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			round, err := a.rounds.CreateRound(cmd.Context(), snapshot, date, players)
			if err != nil {
				return a.out.Fail("failed to create round", err)
			}
			names := make([]string, len(round.Players))
			for i, p := range round.Players {
				names[i] = fmt.Sprintf("%d=%s", p.Index, p.Name)
			}
			return a.out.Result(round, fmt.Sprintf("round %s on %s (%s)", round.ID, round.Date, strings.Join(names, ", ")))
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "course snapshot hash (required)")
	cmd.Flags().StringVar(&date, "date", "", "round date YYYY-MM-DD (required)")
	cmd.Flags().StringArrayVar(&players, "player", nil, "player name in roster order (repeatable)")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newRoundCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "complete <round-id>",
		Short:         "Mark a round complete",
		Long:          `Append the completion event of a round. A round completes at most once.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ev, err := a.rounds.CompleteRound(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail("failed to complete round", err)
			}
			return a.out.Result(ev, fmt.Sprintf("round %s completed", ev.RoundID))
		},
	}
}

func newRoundScoreCommand(rootOpts *RootOptions) *cobra.Command {
	var in lifecycle.ScoreInput
	var putts int
	cmd := &cobra.Command{
		Use:   "score <round-id>",
		Short: "Record or correct a hole score",
		Long: `Append a score row. Recording a hole again is a correction: the newest row
wins and earlier rows are kept.

Example:
  golfkpi round score <round-id> --player 0 --hole 3 --strokes 4 --putts 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			in.RoundID = args[0]
			if cmd.Flags().Changed("putts") {
				in.Putts = &putts
			}
			hs, err := a.rounds.RecordScore(cmd.Context(), in)
			if err != nil {
				return a.out.Fail("score rejected", err)
			}
			return a.out.Result(hs, fmt.Sprintf("player %d hole %d: %d stroke(s) (score %d)",
				hs.PlayerIndex, hs.HoleNumber, hs.Strokes, hs.ScoreID))
		},
	}
	cmd.Flags().IntVar(&in.PlayerIndex, "player", 0, "player index in the roster")
	cmd.Flags().IntVar(&in.HoleNumber, "hole", 0, "hole number (required)")
	cmd.Flags().IntVar(&in.Strokes, "strokes", 0, "strokes (required)")
	cmd.Flags().IntVar(&putts, "putts", 0, "putts (optional)")
	_ = cmd.MarkFlagRequired("hole")
	_ = cmd.MarkFlagRequired("strokes")
	return cmd
}

func newRoundScoresCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "scores <round-id>",
		Short:         "Print the current score of every recorded hole",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			scores, err := a.rounds.CurrentScores(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail("failed to resolve scores", err)
			}
			if scores == nil {
				scores = []store.HoleScore{}
			}
			var b strings.Builder
			for _, hs := range scores {
				putts := "-"
				if hs.Putts != nil {
					putts = fmt.Sprint(*hs.Putts)
				}
				fmt.Fprintf(&b, "player %d hole %2d: strokes %d putts %s\n", hs.PlayerIndex, hs.HoleNumber, hs.Strokes, putts)
			}
			return a.out.Result(scores, strings.TrimSuffix(b.String(), "\n"))
		},
	}
}

func newRoundScorecardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "scorecard <round-id>",
		Short:         "Print a round's scorecard against its frozen snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			card, err := a.rounds.Scorecard(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail("failed to build scorecard", err)
			}
			return a.out.Result(card, formatScorecard(card))
		},
	}
}

func formatScorecard(card *lifecycle.Scorecard) string {
	var b strings.Builder
	status := "in progress"
	if card.Complete {
		status = "complete"
	}
	fmt.Fprintf(&b, "%s (%s tees) %s, par %d, %s\n", card.CourseName, card.TeeSet, card.RoundDate, card.CoursePar, status)
	for _, p := range card.Players {
		fmt.Fprintf(&b, "  %-16s %3d strokes over %2d hole(s), %+d, %d putt(s)\n",
			p.Name, p.Strokes, p.HolesPlayed, p.ToPar, p.Putts)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
