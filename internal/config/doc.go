// Package config provides configuration loading and validation for the emotion profile service.
// It reads a YAML file over built-in defaults, applies environment overrides for the
// classifier credentials and validates every section before the service starts.
package config
