// Package cmd holds the camnode subcommands.
package cmd

import "github.com/smazurov/camnode/internal/streams"

// Env is the resolved root configuration the subcommands run with.
type Env struct {
	ConfigFile  string
	CamerasFile string
	Settings    streams.Settings
}

// EnvFunc returns the Env once the root options have been parsed.
type EnvFunc func() Env
