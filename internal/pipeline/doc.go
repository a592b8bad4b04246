// Package pipeline orchestrates the biolabel stages over the configured
// directories: merge windows, downsample, align and label, summarize.
//
// Each stage logs stage_start, stage_complete or stage_failure with its
// exclusion counts, checks for cancellation before starting, and writes its
// tables atomically so an interrupted stage never leaves a complete-looking
// file behind. Runner.Do serializes invocations with a file lock under
// state_dir, removes temp files a crashed run left behind, and, when history
// is enabled, records every stage unit and the SHA-256 of each table written.
package pipeline
