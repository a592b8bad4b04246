// Package main hosts the biolabel CLI entrypoint and command graph.
//
// Each pipeline stage has its own command (merge, downsample, align,
// summarize) and `run` chains them. Commands resolve configuration once,
// build a pipeline.Runner with run history attached, and print a short
// status report on stdout while structured logs go to stderr and the log
// file. Stage logic lives in the internal packages; this package only wires
// flags, output and exit codes.
package main
