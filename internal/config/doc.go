// Package config loads, layers and validates the batch run configuration.
//
// Values come from Default, then an optional TOML or YAML file, then explicit
// Overrides (normally the command-line flags the user actually passed). The
// merged result is normalized and validated once; components receive the
// finished *Config and never consult flags or files themselves.
package config
