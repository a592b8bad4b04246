// Package blocks recovers contiguous seizure blocks from a labeled, aligned
// table and renders the QA report: one line per block plus per-run aggregates
// of the positive samples.
package blocks
