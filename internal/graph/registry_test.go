package graph

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helloRoot(r *Registry) error {
	return r.RegisterRootField("hello", FieldConfig{
		Type: "String",
		Resolve: func(graphql.ResolveParams) (any, error) {
			return "world", nil
		},
	})
}

func TestRegistryRejectsDuplicateTypesCaseInsensitively(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterObject("MediaItem", ObjectConfig{Fields: map[string]FieldConfig{"id": {Type: "ID!"}}}))

	err := r.RegisterObject("mediaItem", ObjectConfig{Fields: map[string]FieldConfig{"id": {Type: "ID!"}}})
	require.ErrorIs(t, err, ErrDuplicateType)

	err = r.RegisterEnum("string", "", map[string]EnumValue{"A": {Value: "a"}})
	require.ErrorIs(t, err, ErrDuplicateType)
}

func TestRegistryRejectsUnknownFieldType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, helloRoot(r))
	require.NoError(t, r.RegisterObject("Thing", ObjectConfig{Fields: map[string]FieldConfig{
		"other": {Type: "[Missing!]"},
	}}))

	_, err := r.Schema()
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistryRejectsUnknownAttachmentTargets(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, helloRoot(r))
	require.NoError(t, r.RegisterInterface("Named", InterfaceConfig{Fields: map[string]FieldConfig{"name": {Type: "String"}}}))
	r.RegisterInterfacesToTypes([]string{"Named"}, []string{"Nowhere"})

	_, err := r.Schema()
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistryAttachesInterfaceOnceForAliasedNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterInterface("Named", InterfaceConfig{Fields: map[string]FieldConfig{"name": {Type: "String"}}}))
	require.NoError(t, r.RegisterObject("Thing", ObjectConfig{Fields: map[string]FieldConfig{"id": {Type: "Int"}}}))
	require.NoError(t, r.RegisterRootField("thing", FieldConfig{
		Type: "Thing",
		Resolve: func(graphql.ResolveParams) (any, error) {
			return map[string]any{"id": 1, "name": "first"}, nil
		},
	}))
	r.RegisterInterfacesToTypes([]string{"Named"}, []string{"thing", "Thing"})

	schema, err := r.Schema()
	require.NoError(t, err)

	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: `{ thing { id name } __type(name: "Thing") { interfaces { name } } }`,
	})
	require.Empty(t, result.Errors)

	data := result.Data.(map[string]any)
	assert.Equal(t, map[string]any{"id": 1, "name": "first"}, data["thing"])
	assert.Equal(t, []any{map[string]any{"name": "Named"}}, data["__type"].(map[string]any)["interfaces"])
}

func TestRegistryRequiresRootField(t *testing.T) {
	_, err := NewRegistry().Schema()
	require.Error(t, err)
}

func TestInnerName(t *testing.T) {
	for ref, want := range map[string]string{
		"String":       "String",
		"Int!":         "Int",
		"[MediaItem]":  "MediaItem",
		"[Int!]!":      "Int",
		" [[Thing]!] ": "Thing",
	} {
		got, err := innerName(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got, ref)
	}

	_, err := innerName("[Broken")
	assert.Error(t, err)
}
