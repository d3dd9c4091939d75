package connector

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/fedfetch/internal/datapath"
	"github.com/stretchr/testify/require"
)

func testConnectors(t *testing.T) *Connectors {
	t.Helper()
	reg, err := NewConnectors(
		&Connector{ID: "users", ServiceName: "users_rest", BaseURL: "http://rest.local/", Path: "/users/{$this.id}/posts/{$this.meta.kind}", Header: map[string]string{"x-api": "1"}},
		&Connector{ID: "all", ServiceName: "users_rest", BaseURL: "http://rest.local", Path: "/users", Method: http.MethodPost},
	)
	require.NoError(t, err)
	return reg
}

func TestNewConnectors(t *testing.T) {
	_, err := NewConnectors(&Connector{ID: "a"}, &Connector{ID: "a"})
	require.Error(t, err)
	_, err = NewConnectors(&Connector{})
	require.Error(t, err)

	reg := testConnectors(t)
	require.Equal(t, []string{"all", "users"}, reg.IDs())
	c, ok := reg.Get("users")
	require.True(t, ok)
	require.Equal(t, http.MethodGet, c.Method)

	var nilReg *Connectors
	_, ok = nilReg.Get("users")
	require.False(t, ok)
}

func TestTemplateProcessorEntities(t *testing.T) {
	data := map[string]any{
		"authors": []any{
			map[string]any{"id": "u 1", "meta": map[string]any{"kind": "draft"}},
			map[string]any{"id": 7.0, "meta": map[string]any{"kind": true}},
		},
	}
	paths := [][]datapath.Path{
		{datapath.MustParse("/authors/0")},
		{datapath.MustParse("/authors/1")},
	}
	got, err := TemplateProcessor{Concurrency: 1}.Process(context.Background(), &SourceNode{ConnectorID: "users"}, testConnectors(t), data, paths)
	require.NoError(t, err)

	urls := []string{got.Requests[0].URL, got.Requests[1].URL}
	want := []string{"http://rest.local/users/u%201/posts/draft", "http://rest.local/users/7/posts/true"}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Errorf("urls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "1", got.Requests[1].Header.Get("x-api"))
	require.Equal(t, paths[1], got.Requests[1].Paths)
}

func TestTemplateProcessorRoot(t *testing.T) {
	got, err := TemplateProcessor{}.Process(context.Background(), &SourceNode{ConnectorID: "all"}, testConnectors(t), nil, nil)
	require.NoError(t, err)
	require.Len(t, got.Requests, 1)
	require.Equal(t, "http://rest.local/users", got.Requests[0].URL)
	require.Equal(t, http.MethodPost, got.Requests[0].Method)
}

func TestTemplateProcessorErrors(t *testing.T) {
	reg := testConnectors(t)
	ctx := context.Background()

	_, err := TemplateProcessor{}.Process(ctx, &SourceNode{ConnectorID: "nope"}, reg, nil, nil)
	require.ErrorIs(t, err, ErrUnknownConnector)

	_, err = TemplateProcessor{}.Process(ctx, &SourceNode{ConnectorID: "users"}, reg, nil, nil)
	var te *TemplateError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "$this.id", te.Var)

	data := map[string]any{"a": map[string]any{"id": "1"}}
	_, err = TemplateProcessor{}.Process(ctx, &SourceNode{ConnectorID: "users"}, reg, data, [][]datapath.Path{{datapath.MustParse("/a")}})
	require.True(t, errors.As(err, &te))
	require.Equal(t, "$this.meta.kind", te.Var)
	require.ErrorIs(t, err, errMissing)
}
