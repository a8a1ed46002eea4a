// Package config provides centralized configuration management for the
// creditpulse application.
//
// Configuration is loaded from three layers in increasing precedence:
// struct defaults, an optional YAML file (CREDITPULSE_CONFIG_FILE,
// defaulting to config.yaml), and CREDITPULSE_* environment variables.
//
// The analysis calibration (solver tolerances, signal thresholds,
// shock grids) lives in the merton package and is embedded here so a
// deployment can override any part of it without code changes.
package config
