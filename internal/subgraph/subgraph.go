// Package subgraph defines how fetches reach subgraph services.
//
// A Service is the capability to send one GraphQL request to one subgraph.
// Services are found by name through a Lookup; fetch dispatching never
// constructs transports itself.
package subgraph

import (
	"context"
	"net/http"

	"github.com/hanpama/fedfetch/internal/graphql"
	language "github.com/hanpama/fedfetch/internal/language"
)

// Authorization is the authorization requirement a query plan attached to a
// fetch. It is propagated as-is; no decision is made from it here.
type Authorization struct {
	IsAuthenticated bool       `json:"is_authenticated,omitempty"`
	Scopes          [][]string `json:"scopes,omitempty"`
	Policies        [][]string `json:"policies,omitempty"`
}

// Request is an outbound subgraph request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   *graphql.Request

	// Supergraph is the client request the fetch belongs to.
	Supergraph *graphql.Request

	// ServiceName is the subgraph responses and errors are attributed to.
	// For connector-backed fetches it differs from the name the transport
	// was looked up by.
	ServiceName   string
	OperationKind language.Operation
	QueryHash     string
	Authorization *Authorization
}

// Service sends requests to one subgraph.
//
// Implementations must be safe for concurrent use. Call returns a decoded
// GraphQL response when the subgraph produced one, even one carrying only
// errors; a non-nil error means no usable response was received. Retries and
// timeouts are the implementation's business.
type Service interface {
	Call(ctx context.Context, req *Request) (*graphql.Response, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req *Request) (*graphql.Response, error)

func (f ServiceFunc) Call(ctx context.Context, req *Request) (*graphql.Response, error) {
	return f(ctx, req)
}

// Lookup finds the Service for a transport service name.
type Lookup interface {
	Service(name string) (Service, bool)
}

// Registry is a Lookup over a fixed set of services.
type Registry struct {
	services map[string]Service
}

// NewRegistry copies services into a new Registry.
func NewRegistry(services map[string]Service) *Registry {
	cp := make(map[string]Service, len(services))
	for name, s := range services {
		cp[name] = s
	}
	return &Registry{services: cp}
}

func (r *Registry) Service(name string) (Service, bool) {
	s, ok := r.services[name]
	return s, ok
}

// Names returns the registered service names in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.services))
	for name := range r.services {
		out = append(out, name)
	}
	return out
}
