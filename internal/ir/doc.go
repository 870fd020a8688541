// Package ir holds the data model shared by every zkfuzz package: execution
// results, divergence reports, mutation plans and artifact records, plus the
// canonical JSON encoding and content digests built on them.
//
// ir imports nothing internal. Numbers are int64 only; floats never enter
// a commit stream or a generated input.
package ir
