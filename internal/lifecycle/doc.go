// Package lifecycle manages rounds of golf as event logs over the immutable
// fact store.
//
// Nothing here updates a row. A round becomes complete by appending a
// 'completed' event, and a score is corrected by appending a newer
// hole_scores row. Current state is a fold over those facts at query time:
// the current score of a (round, player, hole) is the row with the greatest
// recorded_at, ties broken by the greatest score_id.
package lifecycle
