package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections",
	Long:  `List every collection that holds at least one document.`,
	Args:  cobra.NoArgs,
	Run:   runCollections,
}

func runCollections(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	names, err := c.DB.Collections()
	if err != nil {
		exitError("failed to list collections: %v", err)
	}

	if len(names) == 0 {
		fmt.Println("No collections yet")
		return
	}

	cyan := color.New(color.FgCyan)
	for _, name := range names {
		cyan.Println(name)
	}
}
