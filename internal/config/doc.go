// Package config loads, normalizes, and validates biolabel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the BIOLABEL_SUBJECT environment
// fallback. The Config type centralizes the stage directories, the subject of
// interest, downsampling stride, event association scope and the explicit
// metadata column schema, so every stage resolves columns the same way.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enumerations, and clear validation errors.
package config
