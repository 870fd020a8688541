// Package store is the append-only artifact log of a campaign.
//
// A store lives in one directory:
//
//	<dir>/artifacts.db     SQLite table of records, queried for resume and summaries
//	<dir>/summary.csv      the same records as CSV, one row per comparison
//	<dir>/<run_id>/        input.json, run_log.json and repro.sh for each divergence
//
// All record writes go through a single writer goroutine, so concurrent
// campaign workers never interleave partial rows. Records are never
// rewritten; a newer schema version only appends columns. A summary.csv
// from an older version is rewritten once under the current header, with
// the new columns left empty.
package store
