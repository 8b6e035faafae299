// Package config defines and loads the gateway's YAML configuration.
//
// Configuration is loaded once at startup by the cmd layer, validated, and
// handed to components as plain structs. Core packages (engine, pipeline)
// never read configuration files themselves; the rule files consumed by the
// filter package are separate from this process configuration.
package config
