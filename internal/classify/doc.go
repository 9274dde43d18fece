// Package classify grades shots against an immutable KPI template.
//
// Everything here is a pure function of its inputs: no clock, no randomness,
// no I/O. Grading a shot is the worst-metric floor: each metric present in
// both the shot and the template gets A, B or C from the template's two
// cutoffs, and the shot's grade is the lowest of those. Sample validity maps
// a shot count onto three tiers; A% is withheld (nil) in the lowest tier.
package classify
