// Package pipeerr classifies pipeline failures.
//
// Structural failures (missing files, missing required columns, no modality
// data) are wrapped with a sentinel marker plus the stage, operation and a
// human-readable message so the terminal error names what failed and where.
// Row-level coercion failures are never errors; stages count them instead.
package pipeerr
