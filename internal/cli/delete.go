package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <collection>/<id> [field...]",
	Short: "Delete a document or individual fields",
	Long: `Delete a whole document, or remove just the named fields from it.
System-managed fields cannot be removed.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ref := parseDocArg(args[0])
	fields := args[1:]

	for _, f := range fields {
		if schema.IsBaseField(f) {
			exitError("field %q is protected and cannot be deleted", f)
		}
	}

	err := c.DB.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		if len(fields) == 0 {
			return tx.Delete(ref)
		}

		data := make(map[string]any, len(fields)+1)
		for _, f := range fields {
			data[f] = docdb.FieldDelete
		}
		data[schema.FieldUpdatedAt] = docdb.ServerTimestamp
		return tx.Set(ref, data, docdb.SetOptions{Merge: true})
	}, docdb.TxOptions{MaxAttempts: 3})
	if err != nil {
		exitError("failed to delete from %s: %v", ref.Path(), err)
	}

	if len(fields) == 0 {
		fmt.Printf("Deleted %s\n", ref.Path())
	} else {
		fmt.Printf("Removed %d field(s) from %s\n", len(fields), ref.Path())
	}
}
