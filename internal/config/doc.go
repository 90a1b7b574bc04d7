// Package config loads, normalizes, and validates the worker's TOML
// configuration. Defaults live in defaults.go; environment variables override
// file values for deployment-sensitive settings like credentials and URLs.
package config
