// Package datapath addresses values inside GraphQL response data. Data is the
// usual decoded JSON tree of map[string]any, []any and scalars.
//
// A Path is either concrete (keys and indices only, naming exactly one
// value) or a pattern: "@" flattens every element of a list, "... on T" and
// type conditions on keys filter objects by __typename, and ".." climbs to
// the enclosing object.
package datapath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KeyKind Kind = iota
	IndexKind
	FlattenKind
	FragmentKind
	ParentKind
)

// Element is one step of a Path.
type Element struct {
	Kind           Kind
	Key            string   // KeyKind: response key; FragmentKind: type name
	Index          int      // IndexKind
	TypeConditions []string // KeyKind, FlattenKind
}

func Key(k string, typeConditions ...string) Element {
	return Element{Kind: KeyKind, Key: k, TypeConditions: typeConditions}
}

func Index(i int) Element { return Element{Kind: IndexKind, Index: i} }

func Flatten(typeConditions ...string) Element {
	return Element{Kind: FlattenKind, TypeConditions: typeConditions}
}

func Fragment(typeName string) Element { return Element{Kind: FragmentKind, Key: typeName} }

func Parent() Element { return Element{Kind: ParentKind} }

func (e Element) String() string {
	switch e.Kind {
	case IndexKind:
		return strconv.Itoa(e.Index)
	case FlattenKind:
		return "@" + typeConditionSuffix(e.TypeConditions)
	case FragmentKind:
		return "... on " + e.Key
	case ParentKind:
		return ".."
	default:
		return e.Key + typeConditionSuffix(e.TypeConditions)
	}
}

func typeConditionSuffix(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "|[" + strings.Join(conds, ",") + "]"
}

// Path is a sequence of elements. Paths are values: methods never modify
// the receiver's backing array.
type Path []Element

// String renders p in the slash form accepted by Parse, e.g. "/products/@/id".
func (p Path) String() string {
	var b strings.Builder
	for _, e := range p {
		b.WriteByte('/')
		b.WriteString(e.String())
	}
	return b.String()
}

// Append returns a new path with elems added.
func (p Path) Append(elems ...Element) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, elems...)
}

// Concat returns p followed by other.
func (p Path) Concat(other Path) Path { return p.Append(other...) }

// IsConcrete reports whether p consists of keys and indices only.
func (p Path) IsConcrete() bool {
	for _, e := range p {
		if e.Kind != KeyKind && e.Kind != IndexKind {
			return false
		}
		if len(e.TypeConditions) > 0 {
			return false
		}
	}
	return true
}

// Last returns the final element of p. It panics on an empty path.
func (p Path) Last() Element { return p[len(p)-1] }

// Resolve applies a relative path to a concrete base. Each ".." moves from
// the current object to the object holding it, skipping the list indices in
// between.
func (p Path) Resolve(rel Path) Path {
	out := p.Append()
	for _, e := range rel {
		if e.Kind != ParentKind {
			out = append(out, e)
			continue
		}
		out = trimIndices(out)
		if len(out) > 0 {
			out = out[:len(out)-1]
		}
	}
	return out
}

func trimIndices(p Path) Path {
	for len(p) > 0 && (p[len(p)-1].Kind == IndexKind || p[len(p)-1].Kind == FragmentKind) {
		p = p[:len(p)-1]
	}
	return p
}

// ResponsePath converts a concrete path to the GraphQL error path form of
// strings and ints.
func (p Path) ResponsePath() []any {
	out := make([]any, 0, len(p))
	for _, e := range p {
		switch e.Kind {
		case IndexKind:
			out = append(out, e.Index)
		case KeyKind:
			out = append(out, e.Key)
		}
	}
	return out
}

// FromResponsePath converts a GraphQL error path back to a Path.
func FromResponsePath(rp []any) (Path, error) {
	out := make(Path, 0, len(rp))
	for i, v := range rp {
		switch v := v.(type) {
		case string:
			out = append(out, Key(v))
		case int:
			out = append(out, Index(v))
		case float64:
			out = append(out, Index(int(v)))
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("path element %d: %w", i, err)
			}
			out = append(out, Index(int(n)))
		default:
			return nil, fmt.Errorf("path element %d: unexpected %T", i, v)
		}
	}
	return out, nil
}

// Parse reads the slash form produced by String. A leading slash is
// optional; the empty string is the empty path.
func Parse(s string) (Path, error) {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		e, err := parseElement(part)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseElement(s string) (Element, error) {
	switch {
	case s == "":
		return Element{}, fmt.Errorf("empty path element")
	case s == "..":
		return Parent(), nil
	case strings.HasPrefix(s, "... on "):
		name := strings.TrimSpace(strings.TrimPrefix(s, "... on "))
		if name == "" {
			return Element{}, fmt.Errorf("fragment element %q has no type", s)
		}
		return Fragment(name), nil
	}

	name, conds, err := splitTypeConditions(s)
	if err != nil {
		return Element{}, err
	}
	if name == "@" {
		return Flatten(conds...), nil
	}
	if n, err := strconv.Atoi(name); err == nil && len(conds) == 0 {
		return Index(n), nil
	}
	return Key(name, conds...), nil
}

func splitTypeConditions(s string) (string, []string, error) {
	i := strings.Index(s, "|[")
	if i < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", nil, fmt.Errorf("unterminated type condition in %q", s)
	}
	var conds []string
	for _, c := range strings.Split(s[i+2:len(s)-1], ",") {
		if c = strings.TrimSpace(c); c != "" {
			conds = append(conds, c)
		}
	}
	return s[:i], conds, nil
}

// MarshalJSON encodes p as an array: keys and patterns as strings, indices
// as numbers.
func (p Path) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(p))
	for _, e := range p {
		if e.Kind == IndexKind {
			out = append(out, e.Index)
		} else {
			out = append(out, e.String())
		}
	}
	return json.Marshal(out)
}

func (p *Path) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Path, 0, len(raw))
	for i, v := range raw {
		switch v := v.(type) {
		case float64:
			out = append(out, Index(int(v)))
		case string:
			if v == "@" || v == ".." || strings.HasPrefix(v, "... on ") || strings.Contains(v, "|[") {
				e, err := parseElement(v)
				if err != nil {
					return err
				}
				out = append(out, e)
			} else {
				out = append(out, Key(v))
			}
		default:
			return fmt.Errorf("path element %d: unexpected %T", i, v)
		}
	}
	*p = out
	return nil
}
