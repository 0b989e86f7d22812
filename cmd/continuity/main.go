// Package main implements the continuity CLI for admin operations against
// the continuityd store and server.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

var (
	// dbPath is the SQLite database file the admin commands operate on.
	dbPath string
	// serverURL is the base URL for the continuityd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "continuity",
	Short: "Admin CLI for the continuityd daemon",
	Long: `continuity is a command-line interface for administering continuityd.
It manages users and API keys directly against the database, and can check
the health of a running daemon.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the continuityd database (default ~/.local/share/continuityd/continuity.db)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9191", "continuityd server URL")
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(healthCmd)
}

// openStore opens the admin database. Commands that mutate credentials or
// users go straight to the store; the daemon picks the changes up on its
// next read.
func openStore() (*store.Store, error) {
	path := dbPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".local", "share", "continuityd", "continuity.db")
	}
	return store.Open(store.Options{Path: path}, zap.NewNop())
}
