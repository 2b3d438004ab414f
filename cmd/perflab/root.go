package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080/uploads"

// newRootCmd builds the operator CLI. Every command works offline against
// JSON files, so the srcset and GraphQL behavior can be checked without
// the API, Redis or Postgres.
func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "perflab",
		Short:         "Inspect image format variants and srcset output for media attachments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)

	rootCmd.AddCommand(
		newSelectVariantCmd(),
		newSrcSetCmd(),
		newQueryCmd(),
	)
	return rootCmd
}

// readJSONInput decodes the file at name, or stdin when name is "-".
func readJSONInput(cmd *cobra.Command, name string, into any) error {
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
