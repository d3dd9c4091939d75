package operation

import (
	"fmt"

	"github.com/hanpama/fedfetch/internal/schema"
)

// Invariant names a structural property of a typed operation.
type Invariant string

const (
	SchemaMismatch                 Invariant = "schema mismatch"
	FieldNotFound                  Invariant = "field not found"
	NonCompositeType               Invariant = "non-composite sub-selection type"
	SelectionSetTypeMismatch       Invariant = "selection set type position mismatch"
	FragmentTypeConditionMismatch  Invariant = "fragment type condition mismatch"
	FragmentNotFound               Invariant = "fragment not found"
	FragmentSchemaMismatch         Invariant = "fragment definition schema mismatch"
	FragmentDefinitionTypeMismatch Invariant = "fragment definition type condition mismatch"
	ParentTypeMismatch             Invariant = "parent type mismatch"
	CastTypeMismatch               Invariant = "inline fragment cast type mismatch"
)

// StructuralError reports a typed operation that violates an invariant. It
// points at a defect in whatever produced the tree, never at user input.
type StructuralError struct {
	Invariant Invariant
	Expected  string
	Actual    string
}

func (e *StructuralError) Error() string {
	switch e.Invariant {
	case FieldNotFound, FragmentNotFound:
		return fmt.Sprintf("%s: %s", e.Invariant, e.Actual)
	default:
		return fmt.Sprintf("%s: expected %s, got %s", e.Invariant, e.Expected, e.Actual)
	}
}

func mismatch(inv Invariant, expected, actual fmt.Stringer) *StructuralError {
	return &StructuralError{Invariant: inv, Expected: expected.String(), Actual: actual.String()}
}

// IsWellFormed checks the operation and everything below it against s.
func (op *Operation) IsWellFormed(s *schema.Schema) error {
	if op.Schema != s.ID() {
		return mismatch(SchemaMismatch, s.ID(), op.Schema)
	}
	return op.SelectionSet.IsWellFormed(s, op.Fragments)
}

// IsWellFormed checks every selection of ss with ss.Type as the parent type.
func (ss *SelectionSet) IsWellFormed(s *schema.Schema, fragments NamedFragments) error {
	if ss.Schema != s.ID() {
		return mismatch(SchemaMismatch, s.ID(), ss.Schema)
	}
	for _, sel := range ss.Selections {
		if err := IsSelectionWellFormed(sel, s, fragments, ss.Type); err != nil {
			return err
		}
	}
	return nil
}

// IsSelectionWellFormed checks one selection made on parentType.
func IsSelectionWellFormed(sel Selection, s *schema.Schema, fragments NamedFragments, parentType schema.CompositeType) error {
	if sel.SchemaID() != s.ID() {
		return mismatch(SchemaMismatch, s.ID(), sel.SchemaID())
	}
	switch sel := sel.(type) {
	case *Field:
		return isFieldWellFormed(sel, s, fragments)
	case *FragmentSpread:
		return isFragmentSpreadWellFormed(sel, s, fragments)
	case *InlineFragment:
		return isInlineFragmentWellFormed(sel, s, fragments, parentType)
	default:
		panic(fmt.Sprintf("operation: unknown selection %T", sel))
	}
}

func isFieldWellFormed(f *Field, s *schema.Schema, fragments NamedFragments) error {
	def, err := s.FieldDefinition(f.Position)
	if err != nil {
		return &StructuralError{Invariant: FieldNotFound, Actual: f.Position.String()}
	}
	if f.SelectionSet == nil {
		return nil
	}
	base, err := s.CompositeType(def.Type.GetNamedType())
	if err != nil {
		return &StructuralError{
			Invariant: NonCompositeType,
			Expected:  "a composite type for " + f.Position.String(),
			Actual:    def.Type.GetNamedType(),
		}
	}
	if f.SelectionSet.Type != base {
		return mismatch(SelectionSetTypeMismatch, base, f.SelectionSet.Type)
	}
	return f.SelectionSet.IsWellFormed(s, fragments)
}

func isFragmentSpreadWellFormed(fs *FragmentSpread, s *schema.Schema, fragments NamedFragments) error {
	if fs.TypeCondition != fs.SelectionSet.Type {
		return mismatch(FragmentTypeConditionMismatch, fs.TypeCondition, fs.SelectionSet.Type)
	}
	if err := fs.SelectionSet.IsWellFormed(s, fragments); err != nil {
		return err
	}
	def, ok := fragments.Get(fs.Name)
	if !ok {
		return &StructuralError{Invariant: FragmentNotFound, Actual: fs.Name}
	}
	if def.Schema != s.ID() {
		return mismatch(FragmentSchemaMismatch, s.ID(), def.Schema)
	}
	if def.TypeCondition != fs.TypeCondition {
		return mismatch(FragmentDefinitionTypeMismatch, fs.TypeCondition, def.TypeCondition)
	}
	return nil
}

func isInlineFragmentWellFormed(f *InlineFragment, s *schema.Schema, fragments NamedFragments, parentType schema.CompositeType) error {
	if f.ParentType != parentType {
		return mismatch(ParentTypeMismatch, parentType, f.ParentType)
	}
	if cast := f.CastedType(); cast != f.SelectionSet.Type {
		return mismatch(CastTypeMismatch, cast, f.SelectionSet.Type)
	}
	return f.SelectionSet.IsWellFormed(s, fragments)
}
