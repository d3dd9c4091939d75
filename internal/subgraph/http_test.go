package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/reqctx"
	"github.com/stretchr/testify/require"
)

func TestHTTPServiceCall(t *testing.T) {
	var gotBody graphql.Request
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"_entities":[{"name":"Ada"}]}}`))
	}))
	defer srv.Close()

	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })
	var finished []events.SubgraphFinish
	eventbus.SubscribeTo(bus, func(_ context.Context, e events.SubgraphFinish) { finished = append(finished, e) })

	svc := NewHTTPService(WithHeader("X-Gateway", "fedfetch"))
	ctx, rid := reqctx.NewContext(context.Background())
	res, err := svc.Call(ctx, &Request{
		URL:         srv.URL,
		ServiceName: "accounts",
		Header:      http.Header{"Authorization": []string{"Bearer t"}},
		Body: &graphql.Request{
			Query:         "query Q($representations:[_Any!]!){_entities(representations:$representations){...on User{name}}}",
			OperationName: "Q",
			Variables:     map[string]any{"representations": []any{map[string]any{"__typename": "User", "id": "1"}}},
		},
	})
	require.NoError(t, err)

	want := &graphql.Response{Data: map[string]any{"_entities": []any{map[string]any{"name": "Ada"}}}}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "Q", gotBody.OperationName)
	require.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	require.Equal(t, "fedfetch", gotHeader.Get("X-Gateway"))
	require.Equal(t, "Bearer t", gotHeader.Get("Authorization"))
	require.Equal(t, rid, gotHeader.Get(reqctx.Header))

	require.Len(t, finished, 1)
	require.Equal(t, "accounts", finished[0].Service)
	require.Equal(t, http.StatusOK, finished[0].Status)
	require.NoError(t, finished[0].Err)
}

func TestHTTPServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantRes bool
		check   func(t *testing.T, err error)
	}{
		{
			name:    "graphql errors with 4xx",
			status:  http.StatusBadRequest,
			body:    `{"errors":[{"message":"bad"}]}`,
			wantRes: true,
		},
		{
			name:   "plain 5xx",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			check: func(t *testing.T, err error) {
				var he *HTTPError
				require.True(t, errors.As(err, &he))
				require.Equal(t, http.StatusBadGateway, he.Status)
				require.Equal(t, "upstream down", he.Body)
			},
		},
		{
			name:   "invalid json with 200",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				require.Error(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := NewHTTPService().Call(context.Background(), &Request{URL: srv.URL, Body: &graphql.Request{Query: "{ a }"}})
			if tt.wantRes {
				require.NoError(t, err)
				require.Len(t, res.Errors, 1)
				return
			}
			require.Nil(t, res)
			tt.check(t, err)
		})
	}
}

func TestHTTPServiceResponseLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"big":"0123456789"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPService(WithMaxResponseBytes(8)).Call(context.Background(), &Request{URL: srv.URL, Body: &graphql.Request{Query: "{ big }"}})
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestRegistry(t *testing.T) {
	a := &MockService{}
	src := map[string]Service{"a": a}
	r := NewRegistry(src)
	delete(src, "a")

	got, ok := r.Service("a")
	require.True(t, ok)
	require.Same(t, a, got)

	_, ok = r.Service("b")
	require.False(t, ok)
	require.Equal(t, []string{"a"}, r.Names())
}
