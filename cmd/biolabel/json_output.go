package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// emit writes v as indented JSON when asJSON is set and otherwise hands
// stdout to render. Reports stay on stdout either way so --json output can be
// piped while logs go to stderr.
func emit(cmd *cobra.Command, asJSON bool, v any, render func(io.Writer) error) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		return render(out)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
