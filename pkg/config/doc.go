// Package config loads hutch's runtime configuration from a YAML
// file with environment-variable overrides, validated with
// go-playground/validator/v10.
package config
