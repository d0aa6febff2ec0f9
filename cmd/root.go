// Package cmd implements the bidsquery command line interface, a thin shell
// over the query engine.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bidsquery/bidsquery/internal/config"
	"github.com/bidsquery/bidsquery/internal/discover"
	"github.com/bidsquery/bidsquery/internal/index"
	"github.com/bidsquery/bidsquery/internal/query"
	"github.com/bidsquery/bidsquery/internal/roster"
)

var (
	baseDirFlag string
	rosterFlag  string
	verbose     bool
	jsonOut     bool
	noCache     bool
	refresh     bool
	maxDepth    int
)

var rootCmd = &cobra.Command{
	Use:           "bidsquery",
	Short:         "Locate BIDS datasets and cross-reference them against a participant roster",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDirFlag, "base-dir", "", "Base directory containing studies (default from config)")
	rootCmd.PersistentFlags().StringVar(&rosterFlag, "roster", "", "Participant roster file (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print full results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Bypass the persisted discovery cache")
	rootCmd.PersistentFlags().BoolVar(&refresh, "refresh", false, "Force a rescan, overwriting the cache")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", discover.DefaultMaxDepth, "Maximum directory depth to scan")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
}

// buildEngine wires the composition root: one filesystem, one cache, one
// scanner and one index registry per invocation.
func buildEngine(log zerolog.Logger) (*query.Engine, error) {
	cachePath, err := config.CachePath()
	if err != nil {
		return nil, err
	}
	fsys := osfs.New("/")
	cache := discover.NewCache(fsys, cachePath, log)
	scanner := discover.NewScanner(fsys, cache, log)
	registry := index.NewRegistry(fsys, log)

	engine := query.NewEngine(scanner, registry, log)
	engine.Discovery = discover.Options{
		MaxDepth:     maxDepth,
		UseCache:     !noCache,
		ForceRefresh: refresh,
	}
	return engine, nil
}

func resolveBaseDir() (string, error) {
	if baseDirFlag != "" {
		return baseDirFlag, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.BaseDir != "" {
		return cfg.BaseDir, nil
	}
	return "", fmt.Errorf("no base directory configured; pass --base-dir or run 'bidsquery config --base-dir DIR'")
}

func loadRoster(log zerolog.Logger) (*roster.Roster, error) {
	path := rosterFlag
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.ParticipantFile
	}
	if path == "" {
		return nil, fmt.Errorf("no roster configured; pass --roster or run 'bidsquery config --roster FILE'")
	}
	return roster.Load(path, log)
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}
