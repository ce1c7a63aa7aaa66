// Package cli implements the command-line interface for schemafire.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ifiokjr/schemafire/internal/config"
	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/docdb/boltdb"
	"github.com/ifiokjr/schemafire/internal/docdb/sqldb"
)

// database is what CLI commands need from a backend: the transaction
// contract plus collection enumeration.
type database interface {
	docdb.Database
	Collections() ([]string, error)
}

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	DB     database
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
}

// initContext loads the workspace config and opens its database
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		exitError("%v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		exitError("failed to open database: %v", err)
	}

	return &cmdContext{Config: cfg, DB: db}
}

func openDatabase(cfg *config.Config) (database, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqldb.Open(cfg.DatabasePath())
	default:
		return boltdb.Open(cfg.DatabasePath())
	}
}

var rootCmd = &cobra.Command{
	Use:   "schemafire",
	Short: "Typed document store",
	Long: `Schemafire is a schema-backed document store. Documents live in
collections, carry system-managed timestamps and a schema version, and every
write goes through an atomic transaction.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(collectionsCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
