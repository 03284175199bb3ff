package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"econgrid.ai/internal/persistence/indexdb"
)

type indexFlags struct {
	dataDir string
	worldID string
	dbPath  string
}

func (f *indexFlags) path() (string, error) {
	if p := strings.TrimSpace(f.dbPath); p != "" {
		return p, nil
	}
	if strings.TrimSpace(f.worldID) == "" {
		return "", fmt.Errorf("missing --world or --db")
	}
	return filepath.Join(f.dataDir, "worlds", f.worldID, "index", "world.sqlite"), nil
}

func (f *indexFlags) open() (*indexdb.Reader, error) {
	p, err := f.path()
	if err != nil {
		return nil, err
	}
	return indexdb.OpenReader(p)
}

func newRootCmd() *cobra.Command {
	flags := &indexFlags{}
	root := &cobra.Command{
		Use:   "admin",
		Short: "Inspect econgrid runs: tick index, snapshots and live state",
		Long: `admin reads the SQLite tick index written by the server (ticks, trades,
market events, snapshots, runs), decodes snapshot files, and fetches the
live world state from a running server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.dataDir, "data", "./data", "runtime data directory")
	pf.StringVar(&flags.worldID, "world", "", "world id (required unless --db)")
	pf.StringVar(&flags.dbPath, "db", "", "sqlite index path (optional)")

	root.AddCommand(
		newOverviewCmd(flags),
		newTicksCmd(flags),
		newTradesCmd(flags),
		newMarketsCmd(flags),
		newSnapshotsCmd(flags),
		newRunsCmd(flags),
		newSnapshotCmd(),
		newStateCmd(),
	)
	return root
}

// run wraps an index query so errors are printed the same way everywhere.
func run(flags *indexFlags, fn func(cmd *cobra.Command, r *indexdb.Reader) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		r, err := flags.open()
		if err != nil {
			return printError(cmd, "Cannot open index", err)
		}
		defer r.Close()
		if err := fn(cmd, r); err != nil {
			return printError(cmd, "Query failed", err)
		}
		return nil
	}
}
