package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/fedfetch/internal/grpctp"
	"github.com/hanpama/fedfetch/internal/subgraph"
	"github.com/stretchr/testify/require"
)

const supergraphSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE

enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products:4001/graphql")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews:4002/graphql")
}

type Query {
  topProducts: [Product]
}

type Product {
  upc: String!
}
`

const productsSDL = `
type Query {
  topProducts: [Product]
}

type Product {
  upc: String!
}
`

const configYAML = `
supergraph: supergraph.graphql
subgraphs:
  products:
    schema: products.graphql
    timeout: 2s
    headers:
      x-gateway: fedfetch
  reviews:
    url: grpc://reviews:9000
    transport: grpc
    endpoints: [reviews-0:9000, reviews-1:9000]
connectors:
  - id: users
    service: users_rest
    base_url: http://users.local
    path: /users/{$this.id}
subscription:
  enabled: true
  max_opened_subscriptions: 100
strict_connectors: true
log:
  level: debug
otel:
  endpoint: collector:4317
server:
  addr: :9090
  pretty: true
  cors_origins: ["*"]
  metadata_headers: [authorization]
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"fedfetch.yaml":      configYAML,
		"supergraph.graphql": supergraphSDL,
		"products.graphql":   productsSDL,
	})
	c, err := Load(filepath.Join(dir, "fedfetch.yaml"))
	require.NoError(t, err)

	want := map[string]Subgraph{
		"products": {
			Schema:    "products.graphql",
			Transport: TransportHTTP,
			Timeout:   2 * time.Second,
			Headers:   map[string]string{"x-gateway": "fedfetch"},
		},
		"reviews": {
			URL:       "grpc://reviews:9000",
			Transport: TransportGRPC,
			Endpoints: []string{"reviews-0:9000", "reviews-1:9000"},
		},
	}
	if diff := cmp.Diff(want, c.Subgraphs); diff != "" {
		t.Errorf("subgraphs mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"products", "reviews"}, c.SubgraphNames())
	require.True(t, c.Subscription.Enabled)
	require.Equal(t, 100, c.Subscription.MaxOpenedSubscriptions)
	require.True(t, c.StrictConnectors)
	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, "collector:4317", c.Otel.Endpoint)
	require.Equal(t, "fedfetch", c.Otel.Service)
	require.Equal(t, ":9090", c.Server.Addr)
	require.Equal(t, 10*time.Second, c.Server.Timeout)
	require.Equal(t, filepath.Join(dir, "products.graphql"), c.Path("products.graphql"))
	require.Equal(t, "/abs/x.graphql", c.Path("/abs/x.graphql"))

	reg, err := c.ConnectorRegistry()
	require.NoError(t, err)
	users, ok := reg.Get("users")
	require.True(t, ok)
	require.Equal(t, "GET", users.Method)

	sg, err := c.LoadSupergraph()
	require.NoError(t, err)
	url, ok := sg.ServiceURL("reviews")
	require.True(t, ok)
	require.Equal(t, "grpc://reviews:9000", url)
	url, _ = sg.ServiceURL("products")
	require.Equal(t, "http://products:4001/graphql", url)
	_, ok = sg.Subgraph("products")
	require.True(t, ok)
	_, ok = sg.Subgraph("reviews")
	require.False(t, ok)
}

func TestServices(t *testing.T) {
	c, err := Parse([]byte(configYAML))
	require.NoError(t, err)

	reg, closeAll, err := c.Services()
	require.NoError(t, err)
	defer func() { require.NoError(t, closeAll()) }()

	products, ok := reg.Service("products")
	require.True(t, ok)
	require.IsType(t, &subgraph.HTTPService{}, products)

	reviews, ok := reg.Service("reviews")
	require.True(t, ok)
	require.IsType(t, &grpctp.Transport{}, reviews)

	_, ok = reg.Service("users_rest")
	require.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"missing supergraph":  `subgraphs: {}`,
		"unknown key":         "supergraph: s.graphql\nsupergrph: x",
		"unknown transport":   "supergraph: s.graphql\nsubgraphs:\n  a: {transport: soap}",
		"http endpoints":      "supergraph: s.graphql\nsubgraphs:\n  a: {endpoints: [h:1]}",
		"negative timeout":    "supergraph: s.graphql\nsubgraphs:\n  a: {timeout: -1s}",
		"duplicate connector": "supergraph: s.graphql\nconnectors:\n  - {id: a}\n  - {id: a}",
		"bad duration":        "supergraph: s.graphql\nserver: {timeout: soon}",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			require.Error(t, err)
		})
	}
	_, err := Parse([]byte(`subgraphs: {}`))
	require.ErrorIs(t, err, ErrNoSupergraph)
}

func TestLoadSupergraphErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"fedfetch.yaml":      "supergraph: missing.graphql\n",
		"bad.yaml":           "supergraph: supergraph.graphql\nsubgraphs:\n  a: {schema: broken.graphql}\n",
		"supergraph.graphql": supergraphSDL,
		"broken.graphql":     "type Query {",
	})

	c, err := Load(filepath.Join(dir, "fedfetch.yaml"))
	require.NoError(t, err)
	_, err = c.LoadSupergraph()
	require.ErrorIs(t, err, os.ErrNotExist)

	c, err = Load(filepath.Join(dir, "bad.yaml"))
	require.NoError(t, err)
	_, err = c.LoadSupergraph()
	require.ErrorContains(t, err, `schema "a"`)

	_, err = Load(filepath.Join(dir, "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
