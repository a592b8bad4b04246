// Package table holds the flat in-memory tables every stage passes along and
// their delimited-text encoding.
//
// Cells are kept as text. Numeric coercion happens only where a stage needs a
// number (time_sec, onset, duration, label) through ParseFloat, so a value
// that fails to parse is dropped by that stage instead of aborting the load.
package table
