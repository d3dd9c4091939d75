package schema

import (
	"sort"
	"strings"

	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/vektah/gqlparser/v2/ast"
)

// BuildFromSDL loads SDL (prelude included) and returns the corresponding Schema.
func BuildFromSDL(name, sdl string) (*Schema, error) {
	doc, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, err
	}
	return BuildFromAST(name, doc, NewID(name, sdl)), nil
}

// BuildFromAST builds the schema model from a gqlparser schema and stamps it
// with id. Types and directives are copied, so later changes to doc are not
// observed through the model.
func BuildFromAST(name string, doc *language.Schema, id ID) *Schema {
	s := &Schema{
		Name:        name,
		Types:       make(map[string]*Type, len(doc.Types)),
		Directives:  make(map[string]*Directive, len(doc.Directives)),
		Description: doc.Description,
		id:          id,
		ast:         doc,
	}
	if doc.Query != nil {
		s.QueryType = doc.Query.Name
	}
	if doc.Mutation != nil {
		s.MutationType = doc.Mutation.Name
	}
	if doc.Subscription != nil {
		s.SubscriptionType = doc.Subscription.Name
	}
	for typeName, def := range doc.Types {
		s.Types[typeName] = buildType(doc, def)
	}
	for dirName, def := range doc.Directives {
		s.Directives[dirName] = buildDirective(def)
	}
	return s
}

func buildType(doc *ast.Schema, def *ast.Definition) *Type {
	t := &Type{Name: def.Name, Description: def.Description}
	switch def.Kind {
	case ast.Object:
		t.Kind = TypeKindObject
		t.Fields = buildFields(def.Fields)
		t.Interfaces = append(t.Interfaces, def.Interfaces...)
	case ast.Interface:
		t.Kind = TypeKindInterface
		t.Fields = buildFields(def.Fields)
		t.Interfaces = append(t.Interfaces, def.Interfaces...)
		t.PossibleTypes = possibleTypeNames(doc, def)
	case ast.Union:
		t.Kind = TypeKindUnion
		t.PossibleTypes = possibleTypeNames(doc, def)
	case ast.Enum:
		t.Kind = TypeKindEnum
		for _, v := range def.EnumValues {
			ev := &EnumValue{Name: v.Name, Description: v.Description}
			ev.IsDeprecated, ev.DeprecationReason = deprecation(v.Directives)
			t.EnumValues = append(t.EnumValues, ev)
		}
	case ast.InputObject:
		t.Kind = TypeKindInputObject
		t.OneOf = def.Directives.ForName("oneOf") != nil
		for _, f := range def.Fields {
			t.InputFields = append(t.InputFields, buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives))
		}
	default:
		t.Kind = TypeKindScalar
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				url := arg.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
	}
	return t
}

func buildFields(defs ast.FieldList) []*Field {
	fields := make([]*Field, 0, len(defs))
	for _, def := range defs {
		// Introspection meta fields are resolved by position, not declared.
		if strings.HasPrefix(def.Name, "__") {
			continue
		}
		f := &Field{Name: def.Name, Description: def.Description, Type: buildTypeRef(def.Type)}
		f.IsDeprecated, f.DeprecationReason = deprecation(def.Directives)
		for _, arg := range def.Arguments {
			f.Arguments = append(f.Arguments, buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
		}
		fields = append(fields, f)
	}
	return fields
}

func possibleTypeNames(doc *ast.Schema, def *ast.Definition) []string {
	var names []string
	for _, pt := range doc.GetPossibleTypes(def) {
		names = append(names, pt.Name)
	}
	sort.Strings(names)
	return names
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func buildInputValue(name, desc string, typ *ast.Type, def *ast.Value, dirs ast.DirectiveList) *InputValue {
	in := &InputValue{Name: name, Description: desc, Type: buildTypeRef(typ)}
	if def != nil {
		if v, err := def.Value(nil); err == nil {
			in.DefaultValue = v
		}
	}
	in.IsDeprecated, in.DeprecationReason = deprecation(dirs)
	return in
}

func buildDirective(def *ast.DirectiveDefinition) *Directive {
	d := &Directive{Name: def.Name, Description: def.Description, IsRepeatable: def.IsRepeatable}
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range def.Arguments {
		d.Arguments = append(d.Arguments, buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
	}
	return d
}

func deprecation(dirs ast.DirectiveList) (bool, string) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return false, ""
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return true, reason
}
