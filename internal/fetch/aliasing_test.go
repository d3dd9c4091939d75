package fetch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/stretchr/testify/require"
)

func TestBuildOperationWithAliasing(t *testing.T) {
	sg := testSupergraph(t, reviewsSDL)
	s, _ := sg.Subgraph("reviews")

	text, err := BuildOperationWithAliasing(localeQuery, &ContextualArguments{Arguments: []string{"locale"}, Count: 3}, s)
	require.NoError(t, err)

	doc, err := language.ParseQuery(text)
	require.NoError(t, err)
	op := doc.Operations[0]
	require.Equal(t, "Reviews", op.Name)

	var vars []string
	for _, vd := range op.VariableDefinitions {
		vars = append(vars, vd.Variable)
	}
	want := []string{
		"representations_0", "representations_1", "representations_2",
		"locale_0", "locale_1", "locale_2",
	}
	if diff := cmp.Diff(want, vars); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	var aliases []string
	for _, sel := range op.SelectionSet {
		f := sel.(*language.Field)
		require.Equal(t, "_entities", f.Name)
		require.Equal(t, "$representations_"+f.Alias[1:], f.Arguments[0].Value.String())
		aliases = append(aliases, f.Alias)
	}
	require.Equal(t, []string{"_0", "_1", "_2"}, aliases)
}

func TestBuildOperationWithAliasingErrors(t *testing.T) {
	sg := testSupergraph(t, reviewsSDL)
	s, _ := sg.Subgraph("reviews")
	args := &ContextualArguments{Arguments: []string{"locale"}, Count: 2}

	t.Run("no schema", func(t *testing.T) {
		_, err := BuildOperationWithAliasing(localeQuery, args, nil)
		require.ErrorIs(t, err, errNoSubgraphSchema)
	})
	t.Run("unparsable", func(t *testing.T) {
		_, err := BuildOperationWithAliasing("query {", args, s)
		require.Error(t, err)
	})
	t.Run("two root fields", func(t *testing.T) {
		_, err := BuildOperationWithAliasing(`query($representations: [_Any!]!) { a: _entities(representations: $representations) { __typename } b: _entities(representations: $representations) { __typename } }`, args, s)
		require.ErrorIs(t, err, errRootSelection)
	})
	t.Run("fragment uses contextual variable", func(t *testing.T) {
		op := `query($representations: [_Any!]!, $locale: String) { _entities(representations: $representations) { ...R } } fragment R on Product { reviews(locale: $locale) { body } }`
		_, err := BuildOperationWithAliasing(op, args, s)
		require.ErrorIs(t, err, errFragmentVars)
	})
	t.Run("invalid against subgraph", func(t *testing.T) {
		bad := testSupergraph(t, reviewsNoLocaleSDL)
		s, _ := bad.Subgraph("reviews")
		_, err := BuildOperationWithAliasing(localeQuery, args, s)
		require.Error(t, err)
	})
}

func TestSplitRepresentations(t *testing.T) {
	vars := map[string]any{
		"representations": []any{"a", "b"},
		"locale_0":        "en",
	}
	got := splitRepresentations(vars, 2)
	want := map[string]any{
		"representations_0": []any{"a"},
		"representations_1": []any{"b"},
		"locale_0":          "en",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	require.Contains(t, vars, "representations")
}
