package operation

import (
	"fmt"

	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/hanpama/fedfetch/internal/schema"
)

// Parse parses text and builds the named operation against s.
func Parse(s *schema.Schema, text, opName string) (*Operation, error) {
	doc, err := language.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	return Build(s, doc, opName)
}

// Build validates doc against s and builds the typed tree of the named
// operation. An empty opName selects the only operation of doc.
func Build(s *schema.Schema, doc *language.QueryDocument, opName string) (*Operation, error) {
	if s.AST() != nil {
		if err := language.Validate(s.AST(), doc); err != nil {
			return nil, err
		}
	}
	def := doc.Operations.ForName(opName)
	if def == nil {
		if opName == "" {
			return nil, fmt.Errorf("document must contain exactly one operation, got %d", len(doc.Operations))
		}
		return nil, fmt.Errorf("operation %q not found", opName)
	}

	b := &builder{
		schema:    s,
		defs:      doc.Fragments,
		fragments: make(NamedFragments, len(doc.Fragments)),
		building:  make(map[string]bool),
	}
	for _, fd := range doc.Fragments {
		if _, err := b.fragment(fd.Name); err != nil {
			return nil, err
		}
	}

	rootName := s.RootType(def.Operation)
	if rootName == "" {
		return nil, fmt.Errorf("schema %s does not support %s operations", s.Name, def.Operation)
	}
	root, err := s.CompositeType(rootName)
	if err != nil {
		return nil, err
	}
	ss, err := b.selectionSet(root, def.SelectionSet)
	if err != nil {
		return nil, err
	}
	return &Operation{
		Schema:              s.ID(),
		Kind:                def.Operation,
		Name:                def.Name,
		VariableDefinitions: def.VariableDefinitions,
		Directives:          def.Directives,
		SelectionSet:        ss,
		Fragments:           b.fragments,
	}, nil
}

type builder struct {
	schema    *schema.Schema
	defs      language.FragmentDefinitionList
	fragments NamedFragments
	building  map[string]bool
}

func (b *builder) fragment(name string) (*Fragment, error) {
	if f, ok := b.fragments[name]; ok {
		return f, nil
	}
	if b.building[name] {
		return nil, fmt.Errorf("fragment %q spreads itself", name)
	}
	def := b.defs.ForName(name)
	if def == nil {
		return nil, fmt.Errorf("fragment %q not defined", name)
	}
	b.building[name] = true
	defer delete(b.building, name)

	cond, err := b.schema.CompositeType(def.TypeCondition)
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", name, err)
	}
	ss, err := b.selectionSet(cond, def.SelectionSet)
	if err != nil {
		return nil, err
	}
	f := &Fragment{
		Schema:        b.schema.ID(),
		Name:          name,
		TypeCondition: cond,
		Directives:    def.Directives,
		SelectionSet:  ss,
	}
	b.fragments[name] = f
	return f, nil
}

func (b *builder) selectionSet(typ schema.CompositeType, sels language.SelectionSet) (*SelectionSet, error) {
	ss := &SelectionSet{Schema: b.schema.ID(), Type: typ}
	for _, sel := range sels {
		built, err := b.selection(typ, sel)
		if err != nil {
			return nil, err
		}
		ss.Selections = append(ss.Selections, built)
	}
	return ss, nil
}

func (b *builder) selection(parent schema.CompositeType, sel language.Selection) (Selection, error) {
	switch sel := sel.(type) {
	case *language.Field:
		pos := schema.FieldPosition{Parent: parent, Field: sel.Name}
		if _, err := b.schema.FieldDefinition(pos); err != nil {
			return nil, err
		}
		f := &Field{
			Schema:     b.schema.ID(),
			Position:   pos,
			Arguments:  sel.Arguments,
			Directives: sel.Directives,
		}
		if sel.Alias != sel.Name {
			f.Alias = sel.Alias
		}
		if len(sel.SelectionSet) > 0 {
			base, err := b.schema.BaseType(pos)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pos, err)
			}
			if f.SelectionSet, err = b.selectionSet(base, sel.SelectionSet); err != nil {
				return nil, err
			}
		}
		return f, nil

	case *language.FragmentSpread:
		def, err := b.fragment(sel.Name)
		if err != nil {
			return nil, err
		}
		return &FragmentSpread{
			Schema:        b.schema.ID(),
			Name:          sel.Name,
			TypeCondition: def.TypeCondition,
			Directives:    sel.Directives,
			SelectionSet:  def.SelectionSet,
		}, nil

	case *language.InlineFragment:
		f := &InlineFragment{
			Schema:     b.schema.ID(),
			ParentType: parent,
			Directives: sel.Directives,
		}
		if sel.TypeCondition != "" {
			cond, err := b.schema.CompositeType(sel.TypeCondition)
			if err != nil {
				return nil, err
			}
			f.TypeCondition = cond
		}
		var err error
		if f.SelectionSet, err = b.selectionSet(f.CastedType(), sel.SelectionSet); err != nil {
			return nil, err
		}
		return f, nil

	default:
		return nil, fmt.Errorf("unsupported selection %T", sel)
	}
}
