package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

var setCmd = &cobra.Command{
	Use:   "set <collection>/<id> <field=value>...",
	Short: "Write document fields",
	Long: `Write fields on a document. By default the fields merge into an
existing document; --upsert creates the document when missing, --replace
overwrites the whole document with exactly the given fields. Values are
parsed as JSON where possible and treated as strings otherwise.`,
	Args: cobra.MinimumNArgs(2),
	Run:  runSet,
}

var (
	setUpsert  bool
	setReplace bool
)

func init() {
	setCmd.Flags().BoolVar(&setUpsert, "upsert", false, "Create the document if it does not exist")
	setCmd.Flags().BoolVar(&setReplace, "replace", false, "Replace the whole document instead of merging")
}

func runSet(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ref := parseDocArg(args[0])

	data := make(map[string]any)
	for _, arg := range args[1:] {
		field, value := parseFieldValue(arg)
		data[field] = value
	}
	data[schema.FieldUpdatedAt] = docdb.ServerTimestamp

	err := c.DB.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		switch {
		case setReplace:
			data[schema.FieldCreatedAt] = docdb.ServerTimestamp
			return tx.Set(ref, data, docdb.SetOptions{})
		case setUpsert:
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			if !snap.Exists {
				data[schema.FieldCreatedAt] = docdb.ServerTimestamp
			}
			return tx.Set(ref, data, docdb.SetOptions{Merge: true})
		default:
			return tx.Update(ref, data)
		}
	}, docdb.TxOptions{MaxAttempts: 3})
	if err != nil {
		if errors.Is(err, docdb.ErrNotFound) {
			exitError("document not found: %s (use --upsert to create it)", ref.Path())
		}
		exitError("failed to write %s: %v", ref.Path(), err)
	}

	fmt.Printf("Wrote %d field(s) to %s at %s\n", len(args)-1, ref.Path(),
		time.Now().Format("15:04:05"))
}
