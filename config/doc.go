// Package config loads, normalizes and validates tcgscan configuration.
//
// Values come from Default(), then the TOML file, then TCGSCAN_* environment
// variables. Paths starting with "~" are expanded to absolute paths.
package config
