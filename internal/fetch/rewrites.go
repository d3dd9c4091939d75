package fetch

import "github.com/hanpama/fedfetch/internal/datapath"

// Rewrite adapts data between supergraph and subgraph shapes. It is
// *ValueSetter or *KeyRenamer.
type Rewrite interface {
	Apply(m datapath.TypeMatcher, v any)
	isRewrite()
}

// ValueSetter replaces the value at Path when it exists.
type ValueSetter struct {
	Path       datapath.Path
	SetValueTo any
}

// KeyRenamer moves the value at Path to the sibling key RenameKeyTo. As a
// context rewrite, Path is relative to the entity and RenameKeyTo names the
// variable the found value binds.
type KeyRenamer struct {
	Path        datapath.Path
	RenameKeyTo string
}

func (*ValueSetter) isRewrite() {}
func (*KeyRenamer) isRewrite()  {}

func (r *ValueSetter) Apply(m datapath.TypeMatcher, v any) {
	datapath.Walk(m, v, r.Path, func(obj map[string]any, key string) {
		if _, ok := obj[key]; ok {
			obj[key] = datapath.Clone(r.SetValueTo)
		}
	})
}

func (r *KeyRenamer) Apply(m datapath.TypeMatcher, v any) {
	datapath.Walk(m, v, r.Path, func(obj map[string]any, key string) {
		if val, ok := obj[key]; ok {
			delete(obj, key)
			obj[r.RenameKeyTo] = val
		}
	})
}

// ApplyRewrites applies rs to v in order. v is modified in place.
func ApplyRewrites(m datapath.TypeMatcher, v any, rs []Rewrite) {
	for _, r := range rs {
		r.Apply(m, v)
	}
}
