// Package harness drives differential comparisons.
//
// A single comparison runs one (program, input) pair on two backends,
// compares the results and appends exactly one record to the artifact
// store, persisting a reproduction directory when the backends disagree.
// The steps are sequenced by a small state machine:
//
//	LOAD_INPUT -> RUN_BACKEND_A -> RUN_BACKEND_B -> COMPARE -> RECORD
//	    -> (GENERATE_REPRO if diverged) -> DONE
//
// A campaign expands seeds into mutation plans, persists each plan as a
// manifest, and runs every variant as a single comparison through a
// bounded worker pool. Panics and timeouts inside a backend are results,
// not errors; only infrastructure failures (unknown program, unreadable
// input, failed store write) stop forward progress.
package harness
