package testsupport

import (
	"path/filepath"
	"testing"

	"biolabel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Subject defaults to sub-001 and the stride to 1 so fixtures survive
// downsampling row for row.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WindowDir = filepath.Join(base, "windows")
	cfgVal.Paths.FeatureDir = filepath.Join(base, "features")
	cfgVal.Paths.DownsampledDir = filepath.Join(base, "features", "downsampled")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.EventsFile = filepath.Join(base, "events_combined.csv")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Pipeline.Subject = "sub-001"
	cfgVal.Pipeline.Stride = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithSubject overrides the subject filter.
func WithSubject(subject string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Subject = subject
	}
}

// WithModalities overrides the configured modality list.
func WithModalities(mods ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Modalities = append([]string(nil), mods...)
	}
}

// WithStride overrides the downsampling stride.
func WithStride(stride int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Stride = stride
	}
}

// WithEventScope switches between subject and run event association.
func WithEventScope(scope string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.EventScope = scope
	}
}

// WithEventRunColumn overrides the event log's run column.
func WithEventRunColumn(column string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Schema.EventRunColumn = column
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WindowDir)
}
