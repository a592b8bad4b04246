package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biolabel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BIOLABEL_SUBJECT", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "biolabel")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.Paths.WindowDir) {
		t.Fatalf("expected absolute window dir, got %q", cfg.Paths.WindowDir)
	}
	if cfg.Pipeline.Stride != 25 {
		t.Fatalf("unexpected default stride: %d", cfg.Pipeline.Stride)
	}
	if strings.Join(cfg.Pipeline.Modalities, ",") != "eeg,ecg,emg,mov" {
		t.Fatalf("unexpected default modalities: %v", cfg.Pipeline.Modalities)
	}
	if cfg.Pipeline.EventScope != config.EventScopeSubject {
		t.Fatalf("unexpected event scope: %q", cfg.Pipeline.EventScope)
	}
	if cfg.DelimiterRune() != ',' {
		t.Fatalf("unexpected delimiter: %q", cfg.DelimiterRune())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.FeatureDir, cfg.Paths.DownsampledDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "biolabel.toml")
	content := `
[paths]
window_dir = "` + filepath.ToSlash(filepath.Join(tempDir, "windows")) + `"

[pipeline]
subject = " sub-002 "
modalities = ["EEG", " mov "]
stride = 10
event_scope = "RUN"
delimiter = "\\t"

[schema]
metadata_columns = ["extra_meta"]
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.WindowDir != filepath.Join(tempDir, "windows") {
		t.Fatalf("unexpected window dir: %q", cfg.Paths.WindowDir)
	}
	if cfg.Pipeline.Subject != "sub-002" {
		t.Fatalf("expected trimmed subject, got %q", cfg.Pipeline.Subject)
	}
	if strings.Join(cfg.Pipeline.Modalities, ",") != "eeg,mov" {
		t.Fatalf("unexpected modalities: %v", cfg.Pipeline.Modalities)
	}
	if cfg.Pipeline.Stride != 10 {
		t.Fatalf("unexpected stride: %d", cfg.Pipeline.Stride)
	}
	if cfg.Pipeline.EventScope != config.EventScopeRun {
		t.Fatalf("unexpected scope: %q", cfg.Pipeline.EventScope)
	}
	if cfg.DelimiterRune() != '\t' {
		t.Fatalf("expected tab delimiter, got %q", cfg.DelimiterRune())
	}
	want := []string{"source_file", "time_sec", "extra_meta"}
	if strings.Join(cfg.Schema.MetadataColumns, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected metadata columns: %v", cfg.Schema.MetadataColumns)
	}
	if !strings.HasSuffix(cfg.UnifiedPath(), "unified_downsampled_labeled_sub002.csv") {
		t.Fatalf("unexpected unified path: %q", cfg.UnifiedPath())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"negative stride", "[pipeline]\nstride = -2\n", "pipeline.stride"},
		{"unknown modality", "[pipeline]\nmodalities = [\"eeg\", \"ppg\"]\n", "unknown modality"},
		{"duplicate modality", "[pipeline]\nmodalities = [\"eeg\", \"EEG\"]\n", "duplicate modality"},
		{"bad scope", "[pipeline]\nevent_scope = \"session\"\n", "pipeline.event_scope"},
		{"long delimiter", "[pipeline]\ndelimiter = \";;\"\n", "single character"},
		{"unknown key", "[pipeline]\nstrid = 3\n", "parse config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "biolabel.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error %q", tc.want, err)
			}
		})
	}
}

func TestSubjectFromEnvironment(t *testing.T) {
	t.Setenv("BIOLABEL_SUBJECT", "sub-007")
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Pipeline.Subject != "sub-007" {
		t.Fatalf("expected subject from env, got %q", cfg.Pipeline.Subject)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Pipeline.Subject != "sub-001" {
		t.Fatalf("unexpected sample subject: %q", cfg.Pipeline.Subject)
	}
}
