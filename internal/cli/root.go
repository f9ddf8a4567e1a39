// Package cli defines the puzzlequest command line.
//
//	puzzlequest serve                    run the HTTP API
//	puzzlequest levels [--validate]      list or check the level catalog
//	puzzlequest progress show|reset      inspect or wipe a player's progress
//	puzzlequest play --level N           play a level from a script on stdin
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/puzzlequest/internal/config"
)

var version = "dev" // set via ldflags at build time

// options are the persistent flags shared by subcommands.
type options struct {
	dbPath     string
	levelsFile string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "puzzlequest",
		Short:         "Puzzle progression server and tools",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&opts.levelsFile, "levels", "", "level catalog YAML (overrides LEVELS_FILE)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newLevelsCmd(opts))
	root.AddCommand(newProgressCmd(opts))
	root.AddCommand(newPlayCmd(opts))
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// config resolves the environment and applies flag overrides. It also sets
// the global log level.
func (o *options) config() config.Config {
	cfg := config.Load()
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.levelsFile != "" {
		cfg.LevelsFile = o.levelsFile
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	return cfg
}

// logger is the process logger: JSON in production, console otherwise.
func logger(cfg config.Config) zerolog.Logger {
	if cfg.Production {
		return log.Logger
	}
	return log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func itoa(n int) string { return strconv.Itoa(n) }
