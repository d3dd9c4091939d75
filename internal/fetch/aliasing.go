package fetch

import (
	"errors"
	"fmt"

	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/hanpama/fedfetch/internal/schema"
)

var (
	errNoSubgraphSchema = errors.New("no subgraph schema to validate against")
	errRootSelection    = errors.New("expected exactly one root field")
	errFragmentVars     = errors.New("named fragments use contextual variables")
)

// BuildOperationWithAliasing rewrites op so a single request carries
// per-record argument values: the root field is repeated args.Count times,
// copy i aliased "_i" with every contextual variable (and $representations)
// renamed to "name_i". The result must validate against s.
func BuildOperationWithAliasing(op string, args *ContextualArguments, s *schema.Schema) (string, error) {
	if s == nil || s.AST() == nil {
		return "", errNoSubgraphSchema
	}
	doc, err := language.ParseQuery(op)
	if err != nil {
		return "", err
	}
	if len(doc.Operations) != 1 {
		return "", fmt.Errorf("expected one operation, got %d", len(doc.Operations))
	}

	renamed := map[string]bool{representationsVar: true}
	for _, a := range args.Arguments {
		renamed[a] = true
	}
	for _, f := range doc.Fragments {
		if usesVariables(f.SelectionSet, renamed) {
			return "", errFragmentVars
		}
	}

	def := doc.Operations[0]
	var vars language.VariableDefinitionList
	for _, vd := range def.VariableDefinitions {
		if !renamed[vd.Variable] {
			vars = append(vars, vd)
			continue
		}
		for i := 0; i < args.Count; i++ {
			cp := *vd
			cp.Variable = indexed(vd.Variable, i)
			vars = append(vars, &cp)
		}
	}

	var root *language.Field
	var sels language.SelectionSet
	for _, sel := range def.SelectionSet {
		f, ok := sel.(*language.Field)
		if !ok {
			sels = append(sels, sel)
			continue
		}
		if root != nil {
			return "", errRootSelection
		}
		root = f
	}
	if root == nil {
		return "", errRootSelection
	}
	for i := 0; i < args.Count; i++ {
		f := cloneField(root, func(name string) string {
			if renamed[name] {
				return indexed(name, i)
			}
			return name
		})
		f.Alias = indexed("", i)
		sels = append(sels, f)
	}

	def.VariableDefinitions = vars
	def.SelectionSet = sels
	text := language.Format(doc)

	// Re-parse so validation starts from a clean tree.
	check, err := language.ParseQuery(text)
	if err != nil {
		return "", err
	}
	if err := language.Validate(s.AST(), check); err != nil {
		return "", err
	}
	return text, nil
}

// splitRepresentations moves representation i to "representations_i" to
// match the aliased root fields.
func splitRepresentations(vars map[string]any, count int) map[string]any {
	reps, _ := vars[representationsVar].([]any)
	out := make(map[string]any, len(vars)+count)
	for k, v := range vars {
		if k != representationsVar {
			out[k] = v
		}
	}
	for i := 0; i < count && i < len(reps); i++ {
		out[indexed(representationsVar, i)] = []any{reps[i]}
	}
	return out
}

func cloneField(f *language.Field, rename func(string) string) *language.Field {
	cp := *f
	cp.Arguments = cloneArguments(f.Arguments, rename)
	cp.Directives = cloneDirectives(f.Directives, rename)
	cp.SelectionSet = cloneSelectionSet(f.SelectionSet, rename)
	return &cp
}

func cloneSelectionSet(ss language.SelectionSet, rename func(string) string) language.SelectionSet {
	if ss == nil {
		return nil
	}
	out := make(language.SelectionSet, len(ss))
	for i, sel := range ss {
		switch sel := sel.(type) {
		case *language.Field:
			out[i] = cloneField(sel, rename)
		case *language.InlineFragment:
			cp := *sel
			cp.Directives = cloneDirectives(sel.Directives, rename)
			cp.SelectionSet = cloneSelectionSet(sel.SelectionSet, rename)
			out[i] = &cp
		case *language.FragmentSpread:
			cp := *sel
			cp.Directives = cloneDirectives(sel.Directives, rename)
			out[i] = &cp
		default:
			out[i] = sel
		}
	}
	return out
}

func cloneDirectives(ds language.DirectiveList, rename func(string) string) language.DirectiveList {
	if ds == nil {
		return nil
	}
	out := make(language.DirectiveList, len(ds))
	for i, d := range ds {
		cp := *d
		cp.Arguments = cloneArguments(d.Arguments, rename)
		out[i] = &cp
	}
	return out
}

func cloneArguments(args language.ArgumentList, rename func(string) string) language.ArgumentList {
	if args == nil {
		return nil
	}
	out := make(language.ArgumentList, len(args))
	for i, a := range args {
		cp := *a
		cp.Value = cloneValue(a.Value, rename)
		out[i] = &cp
	}
	return out
}

func cloneValue(v *language.Value, rename func(string) string) *language.Value {
	if v == nil {
		return nil
	}
	cp := *v
	if v.Kind == language.Variable {
		cp.Raw = rename(v.Raw)
	}
	if v.Children != nil {
		cp.Children = make(language.ChildValueList, len(v.Children))
		for i, c := range v.Children {
			cc := *c
			cc.Value = cloneValue(c.Value, rename)
			cp.Children[i] = &cc
		}
	}
	return &cp
}

func usesVariables(ss language.SelectionSet, names map[string]bool) bool {
	used := false
	cloneSelectionSet(ss, func(name string) string {
		if names[name] {
			used = true
		}
		return name
	})
	return used
}
