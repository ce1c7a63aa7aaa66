// Command schemafire is the document-store CLI.
package main

import (
	"os"

	"github.com/ifiokjr/schemafire/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
