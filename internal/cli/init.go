package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ifiokjr/schemafire/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new schemafire workspace",
	Long: `Initialize a new schemafire workspace in the current directory.
This creates a .schemafire directory holding the configuration and the
document database.`,
	Run: runInit,
}

var initBackend string

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendBolt, "Storage backend (bolt or sqlite)")
}

func runInit(cmd *cobra.Command, args []string) {
	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError("schemafire workspace already exists")
	}

	cfg, err := config.Initialize(initBackend)
	if err != nil {
		exitError("failed to initialize workspace: %v", err)
	}

	// Open once so a misconfigured backend fails here, not on first use
	db, err := openDatabase(cfg)
	if err != nil {
		exitError("failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Initialized empty schemafire workspace in %s/\n", config.Dir)
	fmt.Printf("Backend: %s (%s)\n", cfg.Backend, cfg.DatabaseFile)
}
