// Package config loads and validates service configuration from a YAML file,
// a .env file and CARELOOP_-prefixed environment variables, in increasing
// order of precedence. It also exposes the features section as a reloadable
// settings.Source.
package config
