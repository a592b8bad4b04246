package preflight

import (
	"biolabel/internal/config"
)

// MinFreeBytes is the free space required on the output filesystem.
const MinFreeBytes = 64 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the configured inputs are readable and the stage output
// directories are writable. Output directories must already exist, so call
// cfg.EnsureDirectories first.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Window directory", cfg.Paths.WindowDir),
		CheckReadableFile("Event log", cfg.Paths.EventsFile),
		CheckDirectoryAccess("Feature directory", cfg.Paths.FeatureDir),
		CheckDirectoryAccess("Downsampled dir", cfg.Paths.DownsampledDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if out := results[4]; out.Passed {
		results = append(results, CheckFreeSpace("Output space", cfg.Paths.OutputDir, MinFreeBytes))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
