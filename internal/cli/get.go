package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

var getCmd = &cobra.Command{
	Use:   "get <collection>/<id>",
	Short: "Show a document",
	Long:  `Show a document's fields as JSON, including system-managed fields.`,
	Args:  cobra.ExactArgs(1),
	Run:   runGet,
}

func runGet(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ref := parseDocArg(args[0])

	var snap docdb.Snapshot
	err := c.DB.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		var err error
		snap, err = tx.Get(ref)
		return err
	}, docdb.TxOptions{MaxAttempts: 1})
	if err != nil {
		exitError("failed to read %s: %v", ref.Path(), err)
	}

	if !snap.Exists {
		exitError("document not found: %s", ref.Path())
	}

	yellow := color.New(color.FgYellow)
	yellow.Printf("document %s\n", ref.Path())
	if !snap.UpdateTime.IsZero() {
		fmt.Printf("Updated: %s\n", snap.UpdateTime.Format("Mon Jan 2 15:04:05 2006"))
	}
	printDoc(ref, snap.Data)
}
