package main

import (
	"github.com/dunamismax/perflab/internal/domain"
	"github.com/spf13/cobra"
)

func newSelectVariantCmd() *cobra.Command {
	var (
		format   string
		mimeType string
	)

	cmd := &cobra.Command{
		Use:   "select-variant [metadata.json|-]",
		Short: "Rewrite image metadata so only files in one format remain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta domain.ImageMetadata
			if err := readJSONInput(cmd, args[0], &meta); err != nil {
				return err
			}

			out, err := domain.SelectVariant(meta, format, mimeType)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&format, "format", domain.MimeTypeWebP, "MIME type of the format to keep")
	cmd.Flags().StringVar(&mimeType, "mime", domain.MimeTypeJPEG, "MIME type of the original upload")
	return cmd
}
