package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeSchema()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.window_dir", &c.Paths.WindowDir, defaultWindowDir},
		{"paths.feature_dir", &c.Paths.FeatureDir, defaultFeatureDir},
		{"paths.downsampled_dir", &c.Paths.DownsampledDir, defaultDownsampledDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.events_file", &c.Paths.EventsFile, defaultEventsFile},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Subject = strings.TrimSpace(c.Pipeline.Subject)
	if c.Pipeline.Subject == "" {
		if value, ok := os.LookupEnv("BIOLABEL_SUBJECT"); ok {
			c.Pipeline.Subject = strings.TrimSpace(value)
		}
	}

	if len(c.Pipeline.Modalities) == 0 {
		c.Pipeline.Modalities = append([]string(nil), KnownModalities...)
	} else {
		mods := make([]string, 0, len(c.Pipeline.Modalities))
		for _, mod := range c.Pipeline.Modalities {
			normalized := strings.ToLower(strings.TrimSpace(mod))
			if normalized == "" {
				continue
			}
			mods = append(mods, normalized)
		}
		c.Pipeline.Modalities = mods
	}

	if c.Pipeline.Stride == 0 {
		c.Pipeline.Stride = defaultStride
	}

	c.Pipeline.EventScope = strings.ToLower(strings.TrimSpace(c.Pipeline.EventScope))
	if c.Pipeline.EventScope == "" {
		c.Pipeline.EventScope = defaultEventScope
	}

	c.Pipeline.SeizurePrefix = strings.TrimSpace(c.Pipeline.SeizurePrefix)
	if c.Pipeline.SeizurePrefix == "" {
		c.Pipeline.SeizurePrefix = defaultSeizurePrefix
	}

	if c.Pipeline.Delimiter == "" {
		c.Pipeline.Delimiter = defaultDelimiter
	} else if c.Pipeline.Delimiter == `\t` {
		c.Pipeline.Delimiter = "\t"
	}
}

func (c *Config) normalizeSchema() {
	seen := make(map[string]struct{}, len(c.Schema.MetadataColumns)+2)
	cols := make([]string, 0, len(c.Schema.MetadataColumns)+2)
	// source_file and time_sec are structural and always metadata.
	for _, col := range append([]string{"source_file", "time_sec"}, c.Schema.MetadataColumns...) {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	c.Schema.MetadataColumns = cols

	c.Schema.EventRunColumn = strings.TrimSpace(c.Schema.EventRunColumn)
	if c.Schema.EventRunColumn == "" {
		c.Schema.EventRunColumn = defaultEventRunColumn
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
