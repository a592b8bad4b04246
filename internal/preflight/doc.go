// Package preflight provides readiness checks for the filesystem paths
// biolabel reads and writes.
//
// `biolabel config validate` runs RunAll and prints one status line per
// check. Input checks (window directory, event log) only warn because each
// stage reports its own missing inputs; output directory checks fail
// validation.
package preflight
