// Package config loads, normalizes, and validates the TOML configuration
// for the moderation daemon and CLI.
//
// Load resolves the config path (explicit flag, ~/.config/kpid/config.toml,
// or ./kpid.toml), applies repository defaults for missing keys, expands
// tilde paths, and validates cross-field constraints. Components receive a
// *Config and read the sections they own.
package config
