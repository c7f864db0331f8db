// Package config loads, normalizes, and validates greylit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: data and log directories, API bind address, processing
// batch sizes, duplicate-detection strategy, and notification sinks.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical values, and clear validation errors.
package config
