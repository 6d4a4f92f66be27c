// Package config loads, normalizes, and validates paddock configuration.
//
// Configuration lives in a TOML file (default ~/.config/paddock/config.toml,
// falling back to ./paddock.toml). All path fields are expanded to absolute
// paths during load, and unset paths are derived from the car directory so a
// minimal config only names [paths].car_dir.
package config
