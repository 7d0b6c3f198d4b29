package schema

import (
	"fmt"
	"strconv"

	language "github.com/openmerce/catalogql/internal/language"
)

// BuildFromSDL parses an SDL document and returns the executable Schema.
// Root operation types come from the schema definition when present,
// otherwise from the conventional Query/Mutation/Subscription names.
func BuildFromSDL(sdl string) (*Schema, error) {
	doc, err := language.ParseSchema("schema.graphql", sdl)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		Types:      make(map[string]*Type),
		Directives: make(map[string]*Directive),
	}
	for _, t := range []*Type{stringType, intType, floatType, booleanType, idType} {
		s.Types[t.Name] = t
	}
	s.Directives[includeDirective.Name] = includeDirective
	s.Directives[skipDirective.Name] = skipDirective

	defs := append(language.DefinitionList{}, doc.Definitions...)
	defs = append(defs, doc.Extensions...)
	for _, def := range defs {
		t, err := buildDefinition(def)
		if err != nil {
			return nil, err
		}
		if existing, ok := s.Types[t.Name]; ok && existing.Kind == t.Kind {
			mergeType(existing, t)
			continue
		}
		s.Types[t.Name] = t
	}

	for _, dir := range doc.Directives {
		s.Directives[dir.Name] = buildDirectiveDef(dir)
	}

	applyRootTypes(s, doc)
	computePossibleTypes(s)

	if s.QueryType == "" || s.Types[s.QueryType] == nil {
		return nil, fmt.Errorf("schema has no query root type")
	}
	return s, nil
}

func applyRootTypes(s *Schema, doc *language.SchemaDocument) {
	s.QueryType = "Query"
	if s.Types["Mutation"] != nil {
		s.MutationType = "Mutation"
	}
	if s.Types["Subscription"] != nil {
		s.SubscriptionType = "Subscription"
	}
	schemaDefs := append(doc.Schema, doc.SchemaExtension...)
	for _, sd := range schemaDefs {
		if sd.Description != "" {
			s.Description = sd.Description
		}
		for _, op := range sd.OperationTypes {
			switch op.Operation {
			case language.Query:
				s.QueryType = op.Type
			case language.Mutation:
				s.MutationType = op.Type
			case language.Subscription:
				s.SubscriptionType = op.Type
			}
		}
	}
}

func buildDefinition(def *language.Definition) (*Type, error) {
	t := &Type{Name: def.Name, Description: def.Description}
	switch def.Kind {
	case language.Object:
		t.Kind = TypeKindObject
	case language.Interface:
		t.Kind = TypeKindInterface
	case language.Union:
		t.Kind = TypeKindUnion
	case language.Scalar:
		t.Kind = TypeKindScalar
	case language.Enum:
		t.Kind = TypeKindEnum
	case language.InputObject:
		t.Kind = TypeKindInputObject
	default:
		return nil, fmt.Errorf("unsupported definition kind %q for %s", def.Kind, def.Name)
	}

	t.Interfaces = append(t.Interfaces, def.Interfaces...)
	t.PossibleTypes = append(t.PossibleTypes, def.Types...)

	for _, f := range def.Fields {
		if t.Kind == TypeKindInputObject {
			t.InputFields = append(t.InputFields, buildInputValueDef(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives))
			continue
		}
		t.Fields = append(t.Fields, buildFieldDef(f))
	}
	for _, ev := range def.EnumValues {
		val := &EnumValue{Name: ev.Name, Description: ev.Description}
		applyDeprecation(ev.Directives, &val.IsDeprecated, &val.DeprecationReason)
		t.EnumValues = append(t.EnumValues, val)
	}
	if d := def.Directives.ForName("oneOf"); d != nil {
		t.OneOf = true
	}
	return t, nil
}

// mergeType folds a type extension into its base definition.
func mergeType(base, ext *Type) {
	base.Fields = append(base.Fields, ext.Fields...)
	base.InputFields = append(base.InputFields, ext.InputFields...)
	base.EnumValues = append(base.EnumValues, ext.EnumValues...)
	base.Interfaces = append(base.Interfaces, ext.Interfaces...)
	base.PossibleTypes = append(base.PossibleTypes, ext.PossibleTypes...)
}

func buildFieldDef(f *language.FieldDefinition) *Field {
	field := &Field{
		Name:        f.Name,
		Description: f.Description,
		Type:        typeRefFromAST(f.Type),
	}
	for _, arg := range f.Arguments {
		field.Arguments = append(field.Arguments, buildInputValueDef(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
	}
	applyDeprecation(f.Directives, &field.IsDeprecated, &field.DeprecationReason)
	return field
}

func buildInputValueDef(name, description string, t *language.Type, defaultValue *language.Value, directives language.DirectiveList) *InputValue {
	iv := &InputValue{
		Name:         name,
		Description:  description,
		Type:         typeRefFromAST(t),
		DefaultValue: astValueToGo(defaultValue),
	}
	applyDeprecation(directives, &iv.IsDeprecated, &iv.DeprecationReason)
	return iv
}

func buildDirectiveDef(dir *language.DirectiveDefinition) *Directive {
	d := &Directive{
		Name:         dir.Name,
		Description:  dir.Description,
		IsRepeatable: dir.IsRepeatable,
	}
	for _, loc := range dir.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range dir.Arguments {
		d.Arguments = append(d.Arguments, buildInputValueDef(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
	}
	return d
}

func applyDeprecation(directives language.DirectiveList, deprecated *bool, reason *string) {
	d := directives.ForName("deprecated")
	if d == nil {
		return
	}
	*deprecated = true
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		*reason = arg.Value.Raw
	}
}

func typeRefFromAST(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	return ListType(typeRefFromAST(t.Elem))
}

func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	}
	return nil
}

// computePossibleTypes fills interface possible-type lists from the objects
// that declare them.
func computePossibleTypes(s *Schema) {
	for _, t := range s.Types {
		if t.Kind != TypeKindObject {
			continue
		}
		for _, ifaceName := range t.Interfaces {
			iface := s.Types[ifaceName]
			if iface == nil || iface.Kind != TypeKindInterface {
				continue
			}
			if !containsName(iface.PossibleTypes, t.Name) {
				iface.PossibleTypes = append(iface.PossibleTypes, t.Name)
			}
		}
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
