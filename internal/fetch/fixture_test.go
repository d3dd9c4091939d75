package fetch

import (
	"testing"

	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/hanpama/fedfetch/internal/schema"
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
  topProducts(first: Int): [Product]
}

interface Node {
  id: ID!
}

type Product implements Node {
  id: ID!
  upc: String!
  name: String
  locale: String
  reviews(locale: String): [Review]
}

type Review {
  body: String
}
`

const reviewsSDL = `
scalar _Any

union _Entity = Product

type Query {
  _entities(representations: [_Any!]!): [_Entity]!
}

type Product {
  upc: String!
  reviews(locale: String): [Review]
}

type Review {
  body: String
}
`

// reviewsNoLocaleSDL lacks the locale argument, so aliased operations that
// pass it fail validation.
const reviewsNoLocaleSDL = `
scalar _Any

union _Entity = Product

type Query {
  _entities(representations: [_Any!]!): [_Entity]!
}

type Product {
  upc: String!
  reviews: [Review]
}

type Review {
  body: String
}
`

const productsSDL = `
type Query {
  topProducts(first: Int): [Product]
}

type Product {
  id: ID!
  upc: String!
  name: String
  locale: String
}
`

const (
	topProductsQuery = `query TopProducts($first: Int) { topProducts(first: $first) { __typename upc name } }`
	reviewsQuery     = `query Reviews($representations: [_Any!]!) { _entities(representations: $representations) { ... on Product { reviews { body } } } }`
	localeQuery      = `query Reviews($representations: [_Any!]!, $locale: String) { _entities(representations: $representations) { ... on Product { reviews(locale: $locale) { body } } } }`
)

func testSupergraph(t *testing.T, reviews string) *schema.Supergraph {
	t.Helper()
	api, err := schema.BuildFromSDL("supergraph", supergraphSDL)
	require.NoError(t, err)
	products, err := schema.BuildFromSDL("products", productsSDL)
	require.NoError(t, err)
	rev, err := schema.BuildFromSDL("reviews", reviews)
	require.NoError(t, err)
	sg, err := schema.NewSupergraph(api, map[string]*schema.Schema{"products": products, "reviews": rev})
	require.NoError(t, err)
	return sg
}

func mustRequires(t *testing.T, src string) language.SelectionSet {
	t.Helper()
	ss, err := language.ParseSelectionSet(src)
	require.NoError(t, err)
	return ss
}

func reviewsNode(t *testing.T) *Node {
	return &Node{
		ID:            "1",
		ServiceName:   "reviews",
		Operation:     reviewsQuery,
		OperationName: "Reviews",
		OperationKind: language.Query,
		Requires:      mustRequires(t, `{ ... on Product { __typename upc } }`),
		Protocol:      GraphQLProtocol{},
	}
}

func newDispatcher(sg *schema.Supergraph, services map[string]subgraph.Service, opts ...Option) *Dispatcher {
	return NewFactory(sg, subgraph.NewRegistry(services), opts...).Create()
}

// entitiesEcho answers an entity fetch with one review per representation,
// built from its upc.
func entitiesEcho(reps []any) []any {
	out := make([]any, len(reps))
	for i, r := range reps {
		upc := r.(map[string]any)["upc"].(string)
		out[i] = map[string]any{"reviews": []any{map[string]any{"body": "review of " + upc}}}
	}
	return out
}
