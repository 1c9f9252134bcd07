// Package config handles configuration loading, parsing, and validation
// from environment variables (SERVIMED_ prefix) and an optional config.yaml.
// It provides type-safe access to server, store, queue, worker and
// external API settings while keeping configuration details separate from
// business logic.
package config
