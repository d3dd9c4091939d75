package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/stretchr/testify/require"
)

const supergraphSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE

enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products:4001/graphql")
}

type Query {
  topProducts(first: Int): [Product]
}

type Product {
  upc: String!
  name: String
}
`

const rootFetch = `{
	"node": {
		"serviceName": "products",
		"operation": "query TopProducts($first: Int) { topProducts(first: $first) { upc name } }",
		"operationName": "TopProducts",
		"variableUsages": ["first"]
	},
	"request": {"query": "{ topProducts(first: 1) { name } }", "variables": {"first": 1}}
}`

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// productsSubgraph answers topProducts and records the variables it got.
func productsSubgraph(t *testing.T, vars *map[string]any) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphql.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*vars = req.Variables
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"topProducts":[{"upc":"1","name":"Table"}]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, url string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "supergraph.graphql", supergraphSDL)
	return writeFile(t, dir, "fedfetch.yaml", "supergraph: supergraph.graphql\n"+
		"subgraphs:\n  products:\n    url: "+url+"\n"+
		"log:\n  level: error\n")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	sdl := writeFile(t, dir, "schema.graphql", supergraphSDL)
	valid := writeFile(t, dir, "valid.graphql", `query { topProducts { upc ... on Product { name } } }`)
	invalid := writeFile(t, dir, "invalid.graphql", `query { topProducts { price } }`)

	out, _, err := execute(t, "", "validate", "-s", sdl, valid)
	require.NoError(t, err)
	require.Equal(t, "ok\n", out)

	out, _, err = execute(t, `query A { topProducts { upc } } query B { topProducts { name } }`, "validate", "-s", sdl, "-o", "B", "-")
	require.NoError(t, err)
	require.Equal(t, "ok\n", out)

	_, stderr, err := execute(t, "", "validate", "-s", sdl, invalid)
	require.ErrorIs(t, err, errInvalid)
	require.Contains(t, stderr, "price")

	_, _, err = execute(t, "", "validate", "-s", filepath.Join(dir, "missing.graphql"), valid)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetch(t *testing.T) {
	var vars map[string]any
	srv := productsSubgraph(t, &vars)
	cfg := writeConfig(t, srv.URL)

	out, _, err := execute(t, rootFetch, "fetch", "-c", cfg, "-")
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"topProducts":[{"upc":"1","name":"Table"}]}}`, out)
	require.Equal(t, map[string]any{"first": 1.0}, vars)
}

func TestFetchErrors(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	_, _, err := execute(t, `{"data":{}}`, "fetch", "-c", cfg, "-")
	require.ErrorContains(t, err, `no "node"`)

	_, _, err = execute(t, `{`, "fetch", "-c", cfg, "-")
	require.ErrorContains(t, err, "decode request")

	_, _, err = execute(t, rootFetch, "fetch", "-c", filepath.Join(t.TempDir(), "none.yaml"), "-")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = execute(t, rootFetch, "fetch", "-c", cfg, "-")
	require.ErrorContains(t, err, `subgraph "products"`)
}

func TestServeHandler(t *testing.T) {
	var vars map[string]any
	srv := productsSubgraph(t, &vars)
	a, err := newApp(writeConfig(t, srv.URL))
	require.NoError(t, err)
	defer a.Close()

	ts := httptest.NewServer(a.handler())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/fetch", "application/json", strings.NewReader(rootFetch))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, map[string]any{"topProducts": []any{map[string]any{"upc": "1", "name": "Table"}}}, body["data"])

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, http.StatusNoContent, health.StatusCode)
}
