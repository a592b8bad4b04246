// Package history records pipeline invocations and per-stage outcomes in a
// SQLite database under state_dir.
//
// Each invocation is a Run identified by a UUID. Stage units (merge for one
// modality, the align/label pass, and so on) append StageResults carrying row
// and exclusion counts plus the SHA-256 of any table written, so re-runs on
// unchanged inputs can be compared by hash. Schema changes bump the version
// in schema.go; users delete the database to adopt the new schema.
package history
