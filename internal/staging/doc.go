// Package staging sweeps unfinished atomic-write temp files out of the
// pipeline's output directories before a new invocation starts writing.
package staging
