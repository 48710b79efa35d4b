// Package config implements the configuration store for the oscilloscope service.
//
// Values start from Defaults(), are overlaid by an optional YAML file and then by
// OSCOPE_* environment variables, and are validated before use.
package config
