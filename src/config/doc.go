// Package config defines the configuration of a chaincraft node, with default
// values, and the mapstructure tags that bind it to CLI flags and config
// files through viper.
package config
