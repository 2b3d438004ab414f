package main

import (
	"fmt"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/dunamismax/perflab/internal/srcset"
	"github.com/dunamismax/perflab/internal/store"
	"github.com/spf13/cobra"
)

type calculatorFlags struct {
	baseURL   string
	sizesFile string
	maxWidth  int
}

func (f *calculatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", defaultBaseURL, "public URL of the uploads directory")
	cmd.Flags().StringVar(&f.sizesFile, "sizes-file", "", "YAML image size registry (defaults to the built-in sizes)")
	cmd.Flags().IntVar(&f.maxWidth, "max-width", srcset.DefaultMaxWidth, "widest srcset candidate, 0 for no limit")
}

func (f *calculatorFlags) calculator(attachments srcset.AttachmentReader) (*srcset.Calculator, error) {
	sizes, err := srcset.LoadRegistryOrDefault(f.sizesFile)
	if err != nil {
		return nil, err
	}
	return srcset.NewCalculator(attachments, sizes, f.baseURL, srcset.WithMaxWidth(f.maxWidth)), nil
}

func newSrcSetCmd() *cobra.Command {
	var (
		flags   calculatorFlags
		file    string
		size    string
		variant string
	)

	cmd := &cobra.Command{
		Use:   "srcset",
		Short: "Compute the srcset attribute for an attachment JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var att domain.Attachment
			if err := readJSONInput(cmd, file, &att); err != nil {
				return err
			}
			if att.ID <= 0 {
				att.ID = 1
			}

			v, err := domain.ParseVariant(variant)
			if err != nil {
				return err
			}

			calc, err := flags.calculator(store.NewMemoryAttachmentStore(att))
			if err != nil {
				return err
			}

			out, err := calc.SrcSet(cmd.Context(), att.ID, size, v.Filter())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "attachment JSON file, - for stdin")
	cmd.Flags().StringVar(&size, "size", "medium", "image size to build the srcset for")
	cmd.Flags().StringVar(&variant, "variant", string(domain.VariantOriginal), "original or webp")
	return cmd
}
