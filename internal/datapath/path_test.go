package datapath

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{in: "", want: Path{}},
		{in: "/products/@/reviews", want: Path{Key("products"), Flatten(), Key("reviews")}},
		{in: "products/0/id", want: Path{Key("products"), Index(0), Key("id")}},
		{in: "/search/@|[User,Review]", want: Path{Key("search"), Flatten("User", "Review")}},
		{in: "/me|[User]/name", want: Path{Key("me", "User"), Key("name")}},
		{in: "/../... on Product/upc", want: Path{Parent(), Fragment("Product"), Key("upc")}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
			again, err := Parse(got.String())
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}

	_, err := Parse("/a//b")
	require.Error(t, err)
	_, err = Parse("/a|[B")
	require.Error(t, err)
}

func TestPathJSON(t *testing.T) {
	p := Path{Key("products"), Flatten("Book"), Index(2), Fragment("Book"), Key("title")}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `["products","@|[Book]",2,"... on Book","title"]`, string(data))

	var back Path
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(p, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	base := MustParse("/products/0/reviews/1")

	require.Equal(t, "/products/0/reviews/1/author", base.Resolve(Path{Key("author")}).String())
	require.Equal(t, "/products/0/upc", base.Resolve(Path{Parent(), Key("upc")}).String())
	require.Equal(t, "/products/0/... on Book/isbn", base.Resolve(MustParse("../... on Book/isbn")).String())
	require.Equal(t, "/shop", base.Resolve(MustParse("../../shop")).String())
	// the base is never modified
	require.Equal(t, "/products/0/reviews/1", base.String())
}

func TestResponsePath(t *testing.T) {
	p := MustParse("/products/3/name")
	require.Equal(t, []any{"products", 3, "name"}, p.ResponsePath())

	back, err := FromResponsePath([]any{"products", float64(3), "name"})
	require.NoError(t, err)
	require.Equal(t, p, back)

	_, err = FromResponsePath([]any{true})
	require.Error(t, err)
}

func TestIsConcrete(t *testing.T) {
	require.True(t, MustParse("/a/0/b").IsConcrete())
	require.False(t, MustParse("/a/@/b").IsConcrete())
	require.False(t, MustParse("/a|[T]").IsConcrete())
}
