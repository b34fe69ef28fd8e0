// Package config defines the service configuration and its loader.
//
// Configuration is resolved in three layers: compiled-in defaults, an
// optional YAML file, and DOCQA_* environment variables. Later layers win.
// The resolved config is validated before use.
package config
