// Package align merges per-modality long tables into one wide table keyed by
// (run_key, time_sec).
//
// Each modality is restricted to the subject of interest, its rows are keyed
// by the run identity parsed from source_file and the numeric time, and its
// columns are prefixed with the modality name so channel names never collide.
// The join is an N-way outer join over the union of keys; it never
// interpolates between modalities sampled at different instants.
package align
