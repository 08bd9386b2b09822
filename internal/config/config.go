// Package config loads and validates pgmedian CLI configuration from file,
// environment and defaults.
package config

import "errors"

// Config is the top-level configuration struct for pgmedian.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	// Type is the declared type of the input values.
	Type string `mapstructure:"type"`

	// Collation orders text values; empty means byte order.
	Collation string `mapstructure:"collation"`

	// Window is the sliding window size; 0 aggregates the whole stream.
	Window int `mapstructure:"window"`

	// Format selects the result rendering: "table" or "yaml".
	Format string `mapstructure:"format"`

	// Running prints the median after every input row.
	Running bool `mapstructure:"running"`

	// Verify cross-checks the result against a full-sort reference.
	Verify bool `mapstructure:"verify"`

	// Compress enables LZ4 compression of state snapshots.
	Compress bool `mapstructure:"compress"`

	// SnapshotPath writes the final accumulator state to this file.
	SnapshotPath string `mapstructure:"snapshot_path"`

	// ChartPath renders the running median to this HTML file.
	ChartPath string `mapstructure:"chart_path"`

	// MetricsAddr serves Prometheus metrics on this address while running.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Output format names.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWindow indicates the window size is negative.
	ErrInvalidWindow = errors.New("window must be non-negative")
	// ErrInvalidFormat indicates an unknown output format.
	ErrInvalidFormat = errors.New(`format must be "table" or "yaml"`)
	// ErrMissingType indicates the declared type is empty.
	ErrMissingType = errors.New("type must not be empty")
)

// Validate checks field-level constraints. The declared type's mapping to a
// value class is checked by the aggregation layer at first use.
func (c *Config) Validate() error {
	if c.Type == "" {
		return ErrMissingType
	}

	if c.Window < 0 {
		return ErrInvalidWindow
	}

	if c.Format != FormatTable && c.Format != FormatYAML {
		return ErrInvalidFormat
	}

	return nil
}
