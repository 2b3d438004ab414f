package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/graphql-go/graphql"
)

type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type Dependencies struct {
	Store     AttachmentStore
	SrcSets   SrcSetter
	URLs      URLFunc
	SizeNames []string
}

// NewSchema registers the media item types with the Performance Lab
// extension and builds the executable schema.
func NewSchema(deps Dependencies) (graphql.Schema, error) {
	r := NewRegistry()
	if err := RegisterMediaItems(r, deps.Store, deps.URLs, deps.SizeNames); err != nil {
		return graphql.Schema{}, err
	}
	if err := RegisterPerformanceLab(r, deps.SrcSets); err != nil {
		return graphql.Schema{}, err
	}
	return r.Schema()
}

type Executor struct {
	schema graphql.Schema
}

func NewExecutor(schema graphql.Schema) *Executor {
	return &Executor{schema: schema}
}

func (e *Executor) Execute(ctx context.Context, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query is required")
	}
	return nil
}
