package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

var queryCmd = &cobra.Command{
	Use:   "query <collection> <field> <op> <value> [<field> <op> <value>...]",
	Short: "Find the first document matching clauses",
	Long: `Find the first document in a collection matching every clause.
Clauses are (field, operator, value) triples; supported operators are
==, <, <=, >, >=, in, and array-contains. Values are parsed as JSON where
possible and treated as strings otherwise.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 4 || (len(args)-1)%3 != 0 {
			return fmt.Errorf("expected a collection followed by (field, op, value) triples")
		}
		return nil
	},
	Run: runQuery,
}

var queryOps = map[string]docdb.Op{
	"==":             docdb.OpEqual,
	"<":              docdb.OpLess,
	"<=":             docdb.OpLessOrEqual,
	">":              docdb.OpGreater,
	">=":             docdb.OpGreaterOrEqual,
	"in":             docdb.OpIn,
	"array-contains": docdb.OpArrayContains,
}

func runQuery(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	coll := c.DB.Collection(args[0])

	var clauses []docdb.Clause
	for i := 1; i+2 < len(args); i += 3 {
		op, ok := queryOps[args[i+1]]
		if !ok {
			exitError("unknown operator %q", args[i+1])
		}
		clauses = append(clauses, docdb.Where(args[i], op, parseValue(args[i+2])))
	}

	var snap docdb.Snapshot
	var found bool
	err := c.DB.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		var err error
		snap, found, err = tx.Query(coll, clauses)
		return err
	}, docdb.TxOptions{MaxAttempts: 1})
	if err != nil {
		exitError("query failed: %v", err)
	}

	if !found {
		fmt.Printf("No document in %s matches\n", coll.Name)
		return
	}

	yellow := color.New(color.FgYellow)
	yellow.Printf("document %s\n", snap.Ref.Path())
	printDoc(snap.Ref, snap.Data)
}
