package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory and file locations used by each stage.
type Paths struct {
	WindowDir      string `toml:"window_dir"`
	FeatureDir     string `toml:"feature_dir"`
	DownsampledDir string `toml:"downsampled_dir"`
	OutputDir      string `toml:"output_dir"`
	EventsFile     string `toml:"events_file"`
	LogDir         string `toml:"log_dir"`
	StateDir       string `toml:"state_dir"`
}

// Pipeline contains the knobs that change what the stages produce.
type Pipeline struct {
	// Subject restricts alignment to rows whose source file starts with
	// "<subject>_". Empty keeps every subject.
	Subject    string   `toml:"subject"`
	Modalities []string `toml:"modalities"`
	// Stride keeps every Nth row during downsampling.
	Stride int `toml:"stride"`
	// EventScope is "subject" (intervals apply to every run of the subject)
	// or "run" (intervals apply only to the run named on the event row).
	EventScope    string `toml:"event_scope"`
	SeizurePrefix string `toml:"seizure_prefix"`
	Delimiter     string `toml:"delimiter"`
}

// Schema enumerates known metadata columns so signal columns never have to be
// guessed from position.
type Schema struct {
	MetadataColumns []string `toml:"metadata_columns"`
	EventRunColumn  string   `toml:"event_run_column"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for biolabel.
//
// Configuration sections:
//   - Paths: stage input/output directories, event log, logs and state
//   - Pipeline: subject, modalities, stride and event association
//   - Schema: metadata column names excluded from signal prefixing
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Schema   Schema   `toml:"schema"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/biolabel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("biolabel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories stages write into. Input
// directories are left alone so a missing window_dir surfaces as a stage error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range append(c.OutputDirs(), c.Paths.LogDir, c.Paths.StateDir) {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OutputDirs lists the directories stages write tables into.
func (c *Config) OutputDirs() []string {
	return []string{c.Paths.FeatureDir, c.Paths.DownsampledDir, c.Paths.OutputDir}
}

// DelimiterRune returns the configured field delimiter.
func (c *Config) DelimiterRune() rune {
	for _, r := range c.Pipeline.Delimiter {
		return r
	}
	return ','
}

// ConcatenatedPath is where the merge stage writes the long table for a modality.
func (c *Config) ConcatenatedPath(modality string) string {
	return filepath.Join(c.Paths.FeatureDir, fmt.Sprintf("all_%s.csv", modality))
}

// DownsampledPath is where the downsample stage writes a modality's decimated table.
func (c *Config) DownsampledPath(modality string) string {
	return filepath.Join(c.Paths.DownsampledDir, fmt.Sprintf("all_%s_downsampled.csv", modality))
}

// UnifiedPath is the labeled, aligned output table.
func (c *Config) UnifiedPath() string {
	name := "unified_downsampled_labeled.csv"
	if subject := compactSubject(c.Pipeline.Subject); subject != "" {
		name = fmt.Sprintf("unified_downsampled_labeled_%s.csv", subject)
	}
	return filepath.Join(c.Paths.OutputDir, name)
}

// LockPath is the file guarding against overlapping invocations.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "biolabel.lock")
}

// LogPath is the file every invocation appends its log records to.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "biolabel.log")
}

// HistoryPath is the SQLite database recording stage runs.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// compactSubject turns "sub-001" into "sub001" for output file names.
func compactSubject(subject string) string {
	return strings.ReplaceAll(strings.TrimSpace(subject), "-", "")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
