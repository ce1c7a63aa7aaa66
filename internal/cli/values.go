package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// parseDocArg parses a "collection/id" command argument.
func parseDocArg(arg string) docdb.DocRef {
	ref, err := docdb.ParseDocPath(arg)
	if err != nil {
		exitError("invalid document path %q (expected collection/id)", arg)
	}
	return ref
}

// parseFieldValue parses a "field=value" pair. The value is parsed as JSON
// when possible, so numbers, booleans, lists, and tagged shapes work; plain
// text falls back to a string.
func parseFieldValue(arg string) (string, any) {
	field, raw, ok := strings.Cut(arg, "=")
	if !ok || field == "" {
		exitError("invalid field assignment %q (expected field=value)", arg)
	}
	return field, parseValue(raw)
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return docdb.DecodeValue(v)
}

// printDoc renders a document as indented JSON in the tagged value shape.
func printDoc(ref docdb.DocRef, data map[string]any) {
	out, err := json.MarshalIndent(docdb.EncodeData(data), "", "  ")
	if err != nil {
		exitError("failed to render %s: %v", ref.Path(), err)
	}
	fmt.Println(string(out))
}
