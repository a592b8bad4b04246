package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Stride < 1 {
		return fmt.Errorf("pipeline.stride must be at least 1 (got %d)", c.Pipeline.Stride)
	}
	if len(c.Pipeline.Modalities) == 0 {
		return errors.New("pipeline.modalities must name at least one modality")
	}
	seen := make(map[string]struct{}, len(c.Pipeline.Modalities))
	for _, mod := range c.Pipeline.Modalities {
		if !slices.Contains(KnownModalities, mod) {
			return fmt.Errorf("pipeline.modalities: unknown modality %q (expected one of %s)", mod, strings.Join(KnownModalities, ", "))
		}
		if _, ok := seen[mod]; ok {
			return fmt.Errorf("pipeline.modalities: duplicate modality %q", mod)
		}
		seen[mod] = struct{}{}
	}
	switch c.Pipeline.EventScope {
	case EventScopeSubject, EventScopeRun:
	default:
		return fmt.Errorf("pipeline.event_scope: unsupported value %q (expected %q or %q)", c.Pipeline.EventScope, EventScopeSubject, EventScopeRun)
	}
	if utf8.RuneCountInString(c.Pipeline.Delimiter) != 1 {
		return fmt.Errorf("pipeline.delimiter must be a single character (got %q)", c.Pipeline.Delimiter)
	}
	if r := c.DelimiterRune(); r == '"' || r == '\r' || r == '\n' {
		return fmt.Errorf("pipeline.delimiter: %q cannot be used as a field delimiter", r)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
