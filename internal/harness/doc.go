// Package harness runs conformance scenarios against the kernel.
//
// A scenario names artifact fixtures, runs a flow of kernel operations
// against a fresh in-memory store, checks each outcome, and evaluates
// assertions over the resulting trace and the final database state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	thresholds: { min_sample: 5, valid_sample: 15 }
//	templates:
//	  seven_iron: { schema_version: "1.0", club: 7i, metrics: {...}, ... }
//	snapshots:
//	  home: { course_name: Home, tee_set: White, hole_count: 9, holes: [...] }
//	flow:
//	  - op: template.add
//	    args: { template: seven_iron }
//	    expect:
//	      case: Success
//	      result: { inserted: true }
//	assertions:
//	  - type: trace_contains
//	    op: template.add
//	    args: { template: seven_iron }
//	  - type: final_state
//	    table: sessions
//	    where: { session_id: s1 }
//	    expect: { source: trackman }
//
// Fixture names stand in for content hashes: wherever an operation takes a
// template or snapshot, the fixture name resolves to its hash. Round names
// resolve to the IDs generated when the round was created.
//
// # Operations
//
//   - template.add, template.alias, snapshot.add
//   - classify.shot (pure; the template need not be stored)
//   - session.ingest, subsession.analyze, projection.refresh
//   - round.create, round.score, round.complete, round.scorecard
//   - store.exec (raw SQL through the statement guard)
//
// Each step completes with a case: Success, ValidationError,
// ImmutabilityViolation, DuplicateAnalysisError,
// CorrectionOrderingAmbiguity, HashMismatch or NotFound. Any other error
// aborts the run.
//
// # Assertion Types
//
//   - trace_contains: an operation appears in the trace with matching args
//   - trace_order: operations appear in the given order
//   - trace_count: an operation appears exactly N times
//   - final_state: exactly one row of a table matches and has the expected values
//
// # Deterministic Testing
//
// Every run uses a step clock starting at testutil.Epoch and sequential
// IDs, so traces are byte-identical across runs and can be compared with
// golden files (see RunWithGolden).
package harness
