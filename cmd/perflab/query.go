package main

import (
	"encoding/json"
	"fmt"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/dunamismax/perflab/internal/graph"
	"github.com/dunamismax/perflab/internal/store"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		flags         calculatorFlags
		fixtures      string
		variables     string
		operationName string
	)

	cmd := &cobra.Command{
		Use:   "query <graphql>",
		Short: "Run a GraphQL query against attachments loaded from a JSON fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var atts []domain.Attachment
			if err := readJSONInput(cmd, fixtures, &atts); err != nil {
				return err
			}
			for i, att := range atts {
				if err := att.Validate(); err != nil {
					return fmt.Errorf("fixture %d: %w", i, err)
				}
			}

			req := graph.Request{Query: args[0], OperationName: operationName}
			if variables != "" {
				if err := json.Unmarshal([]byte(variables), &req.Variables); err != nil {
					return fmt.Errorf("invalid --variables: %w", err)
				}
			}
			if err := req.Validate(); err != nil {
				return err
			}

			attachments := store.NewMemoryAttachmentStore(atts...)
			calc, err := flags.calculator(attachments)
			if err != nil {
				return err
			}
			schema, err := graph.NewSchema(graph.Dependencies{
				Store:     attachments,
				SrcSets:   calc,
				URLs:      calc.AttachmentURL,
				SizeNames: calc.Sizes().Names(),
			})
			if err != nil {
				return err
			}

			result := graph.NewExecutor(schema).Execute(cmd.Context(), req)
			if err := writeJSON(cmd, result); err != nil {
				return err
			}
			if result.HasErrors() {
				return fmt.Errorf("query returned %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&fixtures, "fixtures", "-", "JSON array of attachments, - for stdin")
	cmd.Flags().StringVar(&variables, "variables", "", "query variables as a JSON object")
	cmd.Flags().StringVar(&operationName, "operation", "", "operation to run when the document has several")
	return cmd
}
