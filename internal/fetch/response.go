package fetch

import (
	"strconv"
	"strings"

	"github.com/hanpama/fedfetch/internal/datapath"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/schema"
)

const entitiesField = "_entities"

// ServiceNames returns the subgraph a node's results are attributed to and
// the name its transport is registered under. They differ for connector
// nodes only.
func ServiceNames(n *Node) (semantic, transport string) {
	if p, ok := n.Protocol.(RestProtocol); ok {
		return p.ParentServiceName, p.ConnectorServiceName
	}
	return n.ServiceName, n.ServiceName
}

// entities returns the entity list of an entity fetch response. Aliased
// responses carry one list per record under "_0", "_1", ...
func entities(data any, aliased int) []any {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	if aliased == 0 {
		list, _ := obj[entitiesField].([]any)
		return list
	}
	out := make([]any, 0, aliased)
	for i := 0; i < aliased; i++ {
		list, _ := obj[indexed("", i)].([]any)
		if len(list) == 0 {
			out = append(out, nil)
			continue
		}
		out = append(out, list[0])
	}
	return out
}

// mergeEntities positions every returned entity at the response paths its
// representation came from.
func mergeEntities(s *schema.Schema, list []any, paths [][]datapath.Path, rewrites []Rewrite) any {
	var out any = map[string]any{}
	for i, ent := range list {
		if i >= len(paths) || ent == nil {
			continue
		}
		ApplyRewrites(s, ent, rewrites)
		for j, p := range paths[i] {
			v := ent
			if j > 0 {
				v = datapath.Clone(ent)
			}
			out = datapath.Merge(out, p, v)
		}
	}
	return out
}

// mergeRoot positions root fetch data at currentDir.
func mergeRoot(s *schema.Schema, data any, dir datapath.Path, rewrites []Rewrite) any {
	if data == nil {
		return map[string]any{}
	}
	ApplyRewrites(s, data, rewrites)
	return datapath.Merge(map[string]any{}, concretePrefix(dir), data)
}

func concretePrefix(p datapath.Path) datapath.Path {
	for i, e := range p {
		if (e.Kind != datapath.KeyKind && e.Kind != datapath.IndexKind) || len(e.TypeConditions) > 0 {
			return p[:i]
		}
	}
	return p
}

// remapErrors rewrites subgraph error paths into response paths and tags
// every error with the subgraph name.
func remapErrors(errs []graphql.Error, service string, dir datapath.Path, paths [][]datapath.Path, aliased int) []graphql.Error {
	if len(errs) == 0 {
		return nil
	}
	prefix := concretePrefix(dir).ResponsePath()
	out := make([]graphql.Error, 0, len(errs))
	for _, e := range errs {
		e = e.WithExtension("service", service)
		if len(e.Path) == 0 {
			out = append(out, e)
			continue
		}
		if paths == nil {
			e.Path = append(append([]any{}, prefix...), e.Path...)
			out = append(out, e)
			continue
		}
		idx, rest, ok := entityIndex(e.Path, aliased)
		if !ok || idx >= len(paths) {
			e.Path = prefix
			out = append(out, e)
			continue
		}
		for _, p := range paths[idx] {
			cp := e
			cp.Path = append(p.ResponsePath(), rest...)
			out = append(out, cp)
		}
	}
	return out
}

// entityIndex finds the record an entity error path points at:
// ["_entities", i, ...] or, for aliased requests, ["_i", 0, ...].
func entityIndex(path []any, aliased int) (int, []any, bool) {
	if len(path) < 2 {
		return 0, nil, false
	}
	head, _ := path[0].(string)
	switch {
	case aliased == 0 && head == entitiesField:
		i, ok := pathIndex(path[1])
		return i, path[2:], ok
	case aliased > 0 && strings.HasPrefix(head, "_"):
		i, err := strconv.Atoi(head[1:])
		if err != nil || i < 0 {
			return 0, nil, false
		}
		return i, path[2:], true
	}
	return 0, nil, false
}

func pathIndex(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, v >= 0
	case float64:
		return int(v), v >= 0
	}
	return 0, false
}
