package operation

import (
	"sort"

	language "github.com/hanpama/fedfetch/internal/language"
)

// Document converts op back into a query document. Fragment definitions are
// emitted in name order.
func (op *Operation) Document() *language.QueryDocument {
	doc := &language.QueryDocument{
		Operations: language.OperationList{{
			Operation:           op.Kind,
			Name:                op.Name,
			VariableDefinitions: op.VariableDefinitions,
			Directives:          op.Directives,
			SelectionSet:        op.SelectionSet.AST(),
		}},
	}
	names := make([]string, 0, len(op.Fragments))
	for name := range op.Fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := op.Fragments[name]
		doc.Fragments = append(doc.Fragments, &language.FragmentDefinition{
			Name:          f.Name,
			TypeCondition: f.TypeCondition.Name,
			Directives:    f.Directives,
			SelectionSet:  f.SelectionSet.AST(),
		})
	}
	return doc
}

// String prints op as GraphQL text.
func (op *Operation) String() string {
	return language.Format(op.Document())
}

// AST converts ss into untyped gqlparser selections.
func (ss *SelectionSet) AST() language.SelectionSet {
	if ss == nil {
		return nil
	}
	out := make(language.SelectionSet, 0, len(ss.Selections))
	for _, sel := range ss.Selections {
		switch sel := sel.(type) {
		case *Field:
			out = append(out, &language.Field{
				Alias:        sel.ResponseName(),
				Name:         sel.Position.Field,
				Arguments:    sel.Arguments,
				Directives:   sel.Directives,
				SelectionSet: sel.SelectionSet.AST(),
			})
		case *FragmentSpread:
			out = append(out, &language.FragmentSpread{
				Name:       sel.Name,
				Directives: sel.Directives,
			})
		case *InlineFragment:
			out = append(out, &language.InlineFragment{
				TypeCondition: sel.TypeCondition.Name,
				Directives:    sel.Directives,
				SelectionSet:  sel.SelectionSet.AST(),
			})
		}
	}
	return out
}
