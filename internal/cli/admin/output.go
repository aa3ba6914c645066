package admin

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

// printResult writes v as indented JSON when --output=json, otherwise it
// calls text.
func printResult(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	outputFormat, _ := cmd.Flags().GetString("output")
	w := cmd.OutOrStdout()

	switch outputFormat {
	case "json":
		jsonBytes, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(jsonBytes))
	case "text", "":
		text(w)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}
