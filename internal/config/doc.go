// Package config defines the promoter settings and provides helpers to load,
// validate and save them in YAML format.
//
// The settings file is optional: a missing file yields Default(), and command
// line flags override whatever the file provides.
package config
