package fetch

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"

	"github.com/hanpama/fedfetch/internal/datapath"
	"github.com/hanpama/fedfetch/internal/graphql"
	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/hanpama/fedfetch/internal/schema"
)

const representationsVar = "representations"

// Variables are the resolved inputs of one fetch.
type Variables struct {
	Variables map[string]any

	// InvertedPaths[i] lists every response position the i-th
	// representation was extracted from.
	InvertedPaths [][]datapath.Path

	// ContextualArguments is set when context values differ between
	// representations, so each one needs its own aliased root field.
	ContextualArguments *ContextualArguments
}

// ContextualArguments names the variables bound per representation. For
// record i, argument a is passed as variable "a_i".
type ContextualArguments struct {
	Arguments []string
	Count     int
}

// NewVariables resolves the variables of a fetch. It reports false when
// there is nothing to fetch: no representation could be extracted at
// currentDir, or a root fetch nested under a null parent.
func NewVariables(
	requires language.SelectionSet,
	usages []string,
	data any,
	currentDir datapath.Path,
	req *graphql.Request,
	s *schema.Schema,
	inputRewrites []Rewrite,
	contextRewrites []Rewrite,
) (*Variables, bool) {
	vars := make(map[string]any, len(usages)+1)
	if req != nil {
		for _, name := range usages {
			if v, ok := req.Variables[name]; ok {
				vars[name] = v
			}
		}
	}

	if len(requires) == 0 {
		if len(currentDir) > 0 && !exists(s, data, currentDir) {
			return nil, false
		}
		return &Variables{Variables: vars}, true
	}

	var (
		reps      []any
		inverted  [][]datapath.Path
		named     []map[string]any
		seen      = map[string]int{}
		contextOn = len(contextRewrites) > 0
	)
	datapath.Select(s, data, currentDir, func(p datapath.Path, v any) {
		rep := executeSelectionSet(s, v, requires)
		if obj, ok := rep.(map[string]any); !ok || len(obj) == 0 {
			return
		}
		ApplyRewrites(s, rep, inputRewrites)

		if key, ok := canonical(rep); ok {
			if i, dup := seen[key]; dup {
				inverted[i] = append(inverted[i], p)
				return
			}
			seen[key] = len(reps)
		}
		reps = append(reps, rep)
		inverted = append(inverted, []datapath.Path{p})
		if contextOn {
			named = append(named, contextValues(s, data, p, contextRewrites))
		}
	})
	if len(reps) == 0 {
		return nil, false
	}

	out := &Variables{Variables: vars, InvertedPaths: inverted}
	if contextOn {
		out.ContextualArguments = bindContextValues(vars, named)
	}
	vars[representationsVar] = reps
	return out, true
}

func exists(s *schema.Schema, data any, p datapath.Path) bool {
	found := false
	datapath.Select(s, data, p, func(datapath.Path, any) { found = true })
	return found
}

// executeSelectionSet extracts the part of v selected by ss. Inline
// fragments apply when v's __typename satisfies their type condition.
func executeSelectionSet(s *schema.Schema, v any, ss language.SelectionSet) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = executeSelectionSet(s, item, ss)
		}
		return out
	case map[string]any:
		out := make(map[string]any)
		typeName, _ := v["__typename"].(string)
		for _, sel := range ss {
			switch sel := sel.(type) {
			case *language.Field:
				key := sel.Alias
				if key == "" {
					key = sel.Name
				}
				child, ok := v[key]
				if !ok {
					continue
				}
				if len(sel.SelectionSet) > 0 && child != nil {
					child = executeSelectionSet(s, child, sel.SelectionSet)
				} else {
					child = datapath.Clone(child)
				}
				out[sel.Name] = child
			case *language.InlineFragment:
				if sel.TypeCondition != "" && (typeName == "" || !s.IsPossibleType(sel.TypeCondition, typeName)) {
					continue
				}
				if sub, ok := executeSelectionSet(s, v, sel.SelectionSet).(map[string]any); ok {
					datapath.DeepMerge(out, sub)
				}
			}
		}
		return out
	default:
		return v
	}
}

// contextValues evaluates the context rewrites for the entity at p. The
// first value found for a rewrite binds its variable.
func contextValues(s *schema.Schema, data any, p datapath.Path, rs []Rewrite) map[string]any {
	out := map[string]any{}
	for _, r := range rs {
		kr, ok := r.(*KeyRenamer)
		if !ok {
			continue
		}
		if _, done := out[kr.RenameKeyTo]; done {
			continue
		}
		datapath.Select(s, data, p.Resolve(kr.Path), func(_ datapath.Path, v any) {
			if _, done := out[kr.RenameKeyTo]; !done {
				out[kr.RenameKeyTo] = v
			}
		})
	}
	return out
}

// bindContextValues adds the context values to vars. Identical values across
// records bind plain variables; otherwise every record i binds "name_i".
func bindContextValues(vars map[string]any, named []map[string]any) *ContextualArguments {
	if len(named) == 0 {
		return nil
	}
	first := named[0]
	same := true
	for _, m := range named[1:] {
		if !reflect.DeepEqual(first, m) {
			same = false
			break
		}
	}
	if same {
		for k, v := range first {
			vars[k] = v
		}
		return nil
	}

	seen := map[string]bool{}
	var args []string
	for i, m := range named {
		for k, v := range m {
			vars[indexed(k, i)] = v
			if !seen[k] {
				seen[k] = true
				args = append(args, k)
			}
		}
	}
	sort.Strings(args)
	return &ContextualArguments{Arguments: args, Count: len(named)}
}

func indexed(name string, i int) string { return name + "_" + strconv.Itoa(i) }

// canonical renders a representation with sorted object keys so equal
// representations share a key. Values JSON cannot encode have no key and
// are never deduplicated.
func canonical(v any) (string, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
