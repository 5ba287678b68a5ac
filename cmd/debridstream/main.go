// Command debridstream serves the search, resolution and streaming API and
// offers the same operations from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/amaumene/debridstream/internal/config"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "debridstream",
		Short:         "Find torrent sources and stream them through a debrid service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")

	root.AddCommand(
		newServeCommand(),
		newSearchCommand(),
		newResolveCommand(),
		newUnlockCommand(),
		newStatusCommand(),
	)
	return root
}

// loadApp reads the configuration and builds the services. Callers own Close.
func loadApp(withDB bool) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApp(cfg, withDB)
}
