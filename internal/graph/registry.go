// Package graph builds the media GraphQL schema. Types are registered by
// name on a Registry, extensions attach interfaces to existing types, and
// the executable schema is assembled once every registration is done.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
)

var (
	ErrDuplicateType = errors.New("duplicate type")
	ErrUnknownType   = errors.New("unknown type")
)

// FieldConfig declares a field. Type uses SDL notation, e.g. "String",
// "Int!" or "[MediaItem]".
type FieldConfig struct {
	Type        string
	Description string
	Args        map[string]ArgConfig
	Resolve     graphql.FieldResolveFn
}

type ArgConfig struct {
	Type         string
	Description  string
	DefaultValue any
}

type EnumValue struct {
	Value       any
	Description string
}

type InterfaceConfig struct {
	Description string
	Fields      map[string]FieldConfig
}

type ObjectConfig struct {
	Description string
	Fields      map[string]FieldConfig
	// IsTypeOf picks this object when an interface value is resolved.
	IsTypeOf func(value any) bool
}

type enumDef struct {
	name        string
	description string
	values      map[string]EnumValue
}

type interfaceDef struct {
	name string
	cfg  InterfaceConfig
}

type objectDef struct {
	name       string
	cfg        ObjectConfig
	interfaces []string
}

// Registry collects type registrations. Type names are matched
// case-insensitively, so "mediaItem" and "MediaItem" name the same type.
type Registry struct {
	names      map[string]string
	enums      map[string]*enumDef
	interfaces map[string]*interfaceDef
	objects    map[string]*objectDef
	rootFields map[string]FieldConfig
	attach     []attachment
}

type attachment struct {
	interfaces []string
	types      []string
}

func NewRegistry() *Registry {
	r := &Registry{
		names:      make(map[string]string),
		enums:      make(map[string]*enumDef),
		interfaces: make(map[string]*interfaceDef),
		objects:    make(map[string]*objectDef),
		rootFields: make(map[string]FieldConfig),
	}
	for _, scalar := range []string{"String", "Int", "Float", "Boolean", "ID"} {
		r.names[typeKey(scalar)] = scalar
	}
	return r
}

func typeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) claim(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("type name is required")
	}
	key := typeKey(name)
	if existing, ok := r.names[key]; ok {
		return "", fmt.Errorf("%w: %s (already registered as %s)", ErrDuplicateType, name, existing)
	}
	r.names[key] = name
	return key, nil
}

func (r *Registry) RegisterEnum(name, description string, values map[string]EnumValue) error {
	if len(values) == 0 {
		return fmt.Errorf("enum %s: at least one value is required", name)
	}
	key, err := r.claim(name)
	if err != nil {
		return err
	}
	r.enums[key] = &enumDef{name: strings.TrimSpace(name), description: description, values: values}
	return nil
}

func (r *Registry) RegisterInterface(name string, cfg InterfaceConfig) error {
	key, err := r.claim(name)
	if err != nil {
		return err
	}
	r.interfaces[key] = &interfaceDef{name: strings.TrimSpace(name), cfg: cfg}
	return nil
}

func (r *Registry) RegisterObject(name string, cfg ObjectConfig) error {
	key, err := r.claim(name)
	if err != nil {
		return err
	}
	r.objects[key] = &objectDef{name: strings.TrimSpace(name), cfg: cfg}
	return nil
}

// RegisterInterfacesToTypes makes every named type implement every named
// interface. The interface fields are added to each type. Names are
// resolved when the schema is built, so registration order does not matter.
func (r *Registry) RegisterInterfacesToTypes(interfaces, types []string) {
	r.attach = append(r.attach, attachment{
		interfaces: append([]string(nil), interfaces...),
		types:      append([]string(nil), types...),
	})
}

func (r *Registry) RegisterRootField(name string, cfg FieldConfig) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("root field name is required")
	}
	if _, ok := r.rootFields[name]; ok {
		return fmt.Errorf("root field %s is already registered", name)
	}
	r.rootFields[name] = cfg
	return nil
}

// Schema assembles the executable schema from every registration.
func (r *Registry) Schema() (graphql.Schema, error) {
	if len(r.rootFields) == 0 {
		return graphql.Schema{}, errors.New("at least one root field is required")
	}
	if err := r.resolveAttachments(); err != nil {
		return graphql.Schema{}, err
	}
	if err := r.validateRefs(); err != nil {
		return graphql.Schema{}, err
	}

	b := &builder{
		registry:     r,
		types:        make(map[string]graphql.Type),
		implementers: make(map[string][]*objectDef),
	}
	b.types[typeKey("String")] = graphql.String
	b.types[typeKey("Int")] = graphql.Int
	b.types[typeKey("Float")] = graphql.Float
	b.types[typeKey("Boolean")] = graphql.Boolean
	b.types[typeKey("ID")] = graphql.ID

	var extra []graphql.Type
	for _, key := range sortedKeys(r.enums) {
		def := r.enums[key]
		values := make(graphql.EnumValueConfigMap, len(def.values))
		for valueName, v := range def.values {
			values[valueName] = &graphql.EnumValueConfig{Value: v.Value, Description: v.Description}
		}
		enum := graphql.NewEnum(graphql.EnumConfig{
			Name:        def.name,
			Description: def.description,
			Values:      values,
		})
		b.types[key] = enum
		extra = append(extra, enum)
	}

	for _, key := range sortedKeys(r.objects) {
		def := r.objects[key]
		for _, iface := range def.interfaces {
			b.implementers[iface] = append(b.implementers[iface], def)
		}
	}

	for _, key := range sortedKeys(r.interfaces) {
		iface := b.buildInterface(key, r.interfaces[key])
		b.types[key] = iface
		extra = append(extra, iface)
	}
	for _, key := range sortedKeys(r.objects) {
		obj := b.buildObject(key, r.objects[key])
		b.types[key] = obj
		extra = append(extra, obj)
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name:   "RootQuery",
		Fields: b.fields(r.rootFields),
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
		Types: extra,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("build schema: %w", err)
	}
	return schema, nil
}

func (r *Registry) resolveAttachments() error {
	for _, a := range r.attach {
		for _, ifaceName := range a.interfaces {
			ifaceKey := typeKey(ifaceName)
			if _, ok := r.interfaces[ifaceKey]; !ok {
				return fmt.Errorf("%w: interface %s", ErrUnknownType, ifaceName)
			}
			for _, typeName := range a.types {
				obj, ok := r.objects[typeKey(typeName)]
				if !ok {
					return fmt.Errorf("%w: object %s", ErrUnknownType, typeName)
				}
				if !containsString(obj.interfaces, ifaceKey) {
					obj.interfaces = append(obj.interfaces, ifaceKey)
				}
			}
		}
	}
	return nil
}

func (r *Registry) validateRefs() error {
	check := func(owner string, fields map[string]FieldConfig) error {
		for name, f := range fields {
			if _, err := r.lookupRef(f.Type); err != nil {
				return fmt.Errorf("%s.%s: %w", owner, name, err)
			}
			for argName, arg := range f.Args {
				if _, err := r.lookupRef(arg.Type); err != nil {
					return fmt.Errorf("%s.%s(%s): %w", owner, name, argName, err)
				}
			}
		}
		return nil
	}

	for _, def := range r.interfaces {
		if err := check(def.name, def.cfg.Fields); err != nil {
			return err
		}
	}
	for _, def := range r.objects {
		if err := check(def.name, def.cfg.Fields); err != nil {
			return err
		}
	}
	return check("RootQuery", r.rootFields)
}

// lookupRef checks that every named type inside an SDL type reference is
// registered and returns the innermost name.
func (r *Registry) lookupRef(ref string) (string, error) {
	named, err := innerName(ref)
	if err != nil {
		return "", err
	}
	if _, ok := r.names[typeKey(named)]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, named)
	}
	return named, nil
}

type builder struct {
	registry     *Registry
	types        map[string]graphql.Type
	implementers map[string][]*objectDef
}

func (b *builder) buildInterface(key string, def *interfaceDef) *graphql.Interface {
	return graphql.NewInterface(graphql.InterfaceConfig{
		Name:        def.name,
		Description: def.cfg.Description,
		Fields:      b.fields(def.cfg.Fields),
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			candidates := b.implementers[key]
			for _, obj := range candidates {
				matches := len(candidates) == 1
				if obj.cfg.IsTypeOf != nil {
					matches = obj.cfg.IsTypeOf(p.Value)
				}
				if matches {
					resolved, _ := b.types[typeKey(obj.name)].(*graphql.Object)
					return resolved
				}
			}
			return nil
		},
	})
}

func (b *builder) buildObject(key string, def *objectDef) *graphql.Object {
	fields := make(map[string]FieldConfig, len(def.cfg.Fields))
	for _, ifaceKey := range def.interfaces {
		for name, f := range b.registry.interfaces[ifaceKey].cfg.Fields {
			fields[name] = f
		}
	}
	for name, f := range def.cfg.Fields {
		fields[name] = f
	}

	interfaces := def.interfaces
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        def.name,
		Description: def.cfg.Description,
		Interfaces: graphql.InterfacesThunk(func() []*graphql.Interface {
			out := make([]*graphql.Interface, 0, len(interfaces))
			for _, ifaceKey := range interfaces {
				out = append(out, b.types[ifaceKey].(*graphql.Interface))
			}
			return out
		}),
		Fields: b.fields(fields),
	})
}

// fields defers type resolution until the schema walks the type graph, so
// objects may reference each other in any order.
func (b *builder) fields(configs map[string]FieldConfig) graphql.FieldsThunk {
	return func() graphql.Fields {
		out := make(graphql.Fields, len(configs))
		for name, f := range configs {
			field := &graphql.Field{
				Name:        name,
				Type:        b.outputType(f.Type),
				Description: f.Description,
				Resolve:     f.Resolve,
			}
			if len(f.Args) > 0 {
				field.Args = make(graphql.FieldConfigArgument, len(f.Args))
				for argName, arg := range f.Args {
					field.Args[argName] = &graphql.ArgumentConfig{
						Type:         b.inputType(arg.Type),
						Description:  arg.Description,
						DefaultValue: arg.DefaultValue,
					}
				}
			}
			out[name] = field
		}
		return out
	}
}

func (b *builder) outputType(ref string) graphql.Output {
	t, _ := b.wrap(ref).(graphql.Output)
	return t
}

func (b *builder) inputType(ref string) graphql.Input {
	t, _ := b.wrap(ref).(graphql.Input)
	return t
}

// wrap turns an SDL reference into the graphql-go type, applying list and
// non-null modifiers. References were validated before the build started.
func (b *builder) wrap(ref string) graphql.Type {
	ref = strings.TrimSpace(ref)
	if strings.HasSuffix(ref, "!") {
		return graphql.NewNonNull(b.wrap(strings.TrimSuffix(ref, "!")))
	}
	if strings.HasPrefix(ref, "[") && strings.HasSuffix(ref, "]") {
		return graphql.NewList(b.wrap(ref[1 : len(ref)-1]))
	}
	return b.types[typeKey(ref)]
}

func innerName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", errors.New("empty type reference")
	case strings.HasSuffix(ref, "!"):
		inner := strings.TrimSuffix(ref, "!")
		if strings.HasSuffix(inner, "!") {
			return "", fmt.Errorf("invalid type reference %q", ref)
		}
		return innerName(inner)
	case strings.HasPrefix(ref, "[") || strings.HasSuffix(ref, "]"):
		if !strings.HasPrefix(ref, "[") || !strings.HasSuffix(ref, "]") {
			return "", fmt.Errorf("invalid type reference %q", ref)
		}
		return innerName(ref[1 : len(ref)-1])
	default:
		return ref, nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
