package schema

import (
	"fmt"
	"sort"
)

const (
	joinGraphEnum      = "join__Graph"
	joinGraphDirective = "join__graph"
)

// ServiceInfo describes one subgraph service of a supergraph.
type ServiceInfo struct {
	Name  string // subgraph name used by query plans
	Graph string // join__Graph enum value
	URL   string
}

// Supergraph is the composed API schema plus the schemas of the services it
// spans. It is built once and then only read.
type Supergraph struct {
	Schema    *Schema
	Subgraphs map[string]*Schema

	services map[string]ServiceInfo
}

// NewSupergraph binds the supergraph schema to its per-service schemas and
// reads the service registry from the join__Graph enum when present.
func NewSupergraph(api *Schema, subgraphs map[string]*Schema) (*Supergraph, error) {
	sg := &Supergraph{
		Schema:    api,
		Subgraphs: make(map[string]*Schema, len(subgraphs)),
		services:  make(map[string]ServiceInfo),
	}
	for name, s := range subgraphs {
		sg.Subgraphs[name] = s
	}
	if api.AST() == nil {
		return sg, nil
	}
	enum := api.AST().Types[joinGraphEnum]
	if enum == nil {
		return sg, nil
	}
	for _, v := range enum.EnumValues {
		d := v.Directives.ForName(joinGraphDirective)
		if d == nil {
			continue
		}
		info := ServiceInfo{Graph: v.Name}
		if arg := d.Arguments.ForName("name"); arg != nil && arg.Value != nil {
			info.Name = arg.Value.Raw
		}
		if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
			info.URL = arg.Value.Raw
		}
		if info.Name == "" {
			return nil, fmt.Errorf("join__Graph.%s: missing service name", v.Name)
		}
		if _, dup := sg.services[info.Name]; dup {
			return nil, fmt.Errorf("join__Graph.%s: duplicate service name %q", v.Name, info.Name)
		}
		sg.services[info.Name] = info
	}
	return sg, nil
}

// WithServiceURLs returns a copy of sg whose registry has the given URLs.
// Services not yet known are added.
func (sg *Supergraph) WithServiceURLs(urls map[string]string) *Supergraph {
	out := &Supergraph{
		Schema:    sg.Schema,
		Subgraphs: sg.Subgraphs,
		services:  make(map[string]ServiceInfo, len(sg.services)+len(urls)),
	}
	for name, info := range sg.services {
		out.services[name] = info
	}
	for name, url := range urls {
		info := out.services[name]
		info.Name = name
		info.URL = url
		out.services[name] = info
	}
	return out
}

// ServiceURL returns the address registered for the named service.
func (sg *Supergraph) ServiceURL(name string) (string, bool) {
	info, ok := sg.services[name]
	if !ok || info.URL == "" {
		return "", false
	}
	return info.URL, true
}

// Subgraph returns the schema of the named service.
func (sg *Supergraph) Subgraph(name string) (*Schema, bool) {
	s, ok := sg.Subgraphs[name]
	return s, ok
}

// Services lists the registry sorted by service name.
func (sg *Supergraph) Services() []ServiceInfo {
	out := make([]ServiceInfo, 0, len(sg.services))
	for _, info := range sg.services {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
