// Package operation holds typed GraphQL operations: selection trees whose
// every node records the schema it was built against and the type position
// it selects on. Typed trees are produced from parsed documents by Build and
// checked for structural consistency by the IsWellFormed family.
package operation

import (
	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/hanpama/fedfetch/internal/schema"
)

// Operation is an executable operation bound to one schema.
type Operation struct {
	Schema              schema.ID
	Kind                language.Operation
	Name                string
	VariableDefinitions language.VariableDefinitionList
	Directives          language.DirectiveList
	SelectionSet        *SelectionSet
	Fragments           NamedFragments
}

// SelectionSet is an ordered list of selections made on Type.
type SelectionSet struct {
	Schema     schema.ID
	Type       schema.CompositeType
	Selections []Selection
}

// Selection is one of *Field, *FragmentSpread or *InlineFragment. The set of
// implementations is closed.
type Selection interface {
	SchemaID() schema.ID
	isSelection()
}

// Field selects Position.Field on Position.Parent. SelectionSet is nil for
// leaf fields.
type Field struct {
	Schema       schema.ID
	Position     schema.FieldPosition
	Alias        string
	Arguments    language.ArgumentList
	Directives   language.DirectiveList
	SelectionSet *SelectionSet
}

// ResponseName is the key the field's value is stored under.
func (f *Field) ResponseName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Position.Field
}

// FragmentSpread references a named fragment. SelectionSet is the fragment
// body expanded at the spread site.
type FragmentSpread struct {
	Schema        schema.ID
	Name          string
	TypeCondition schema.CompositeType
	Directives    language.DirectiveList
	SelectionSet  *SelectionSet
}

// InlineFragment narrows ParentType to TypeCondition. A zero TypeCondition
// means the fragment has none and keeps the parent type.
type InlineFragment struct {
	Schema        schema.ID
	ParentType    schema.CompositeType
	TypeCondition schema.CompositeType
	Directives    language.DirectiveList
	SelectionSet  *SelectionSet
}

// CastedType is the type the fragment's selections are made on.
func (f *InlineFragment) CastedType() schema.CompositeType {
	if f.TypeCondition.IsZero() {
		return f.ParentType
	}
	return f.TypeCondition
}

func (f *Field) SchemaID() schema.ID          { return f.Schema }
func (f *FragmentSpread) SchemaID() schema.ID { return f.Schema }
func (f *InlineFragment) SchemaID() schema.ID { return f.Schema }

func (*Field) isSelection()          {}
func (*FragmentSpread) isSelection() {}
func (*InlineFragment) isSelection() {}

// Fragment is a named fragment definition.
type Fragment struct {
	Schema        schema.ID
	Name          string
	TypeCondition schema.CompositeType
	Directives    language.DirectiveList
	SelectionSet  *SelectionSet
}

// NamedFragments maps fragment names to their definitions.
type NamedFragments map[string]*Fragment

// Get returns the fragment named name.
func (nf NamedFragments) Get(name string) (*Fragment, bool) {
	f, ok := nf[name]
	return f, ok
}
