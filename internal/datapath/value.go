package datapath

// TypeMatcher decides whether an object of concrete type typeName satisfies
// a type condition. *schema.Schema implements it.
type TypeMatcher interface {
	IsPossibleType(cond, typeName string) bool
}

// Select calls fn for every value in data matched by p, in document order,
// together with the concrete path of that value. Missing keys and nulls end
// a branch silently.
func Select(m TypeMatcher, data any, p Path, fn func(Path, any)) {
	selectAt(m, data, p, Path{}, fn)
}

func selectAt(m TypeMatcher, v any, rest Path, at Path, fn func(Path, any)) {
	if len(rest) == 0 {
		if v != nil {
			fn(at, v)
		}
		return
	}
	e := rest[0]
	switch e.Kind {
	case KeyKind:
		obj, ok := v.(map[string]any)
		if !ok {
			return
		}
		child, ok := obj[e.Key]
		if !ok || child == nil {
			return
		}
		if len(e.TypeConditions) > 0 && !matchesAny(m, child, e.TypeConditions) {
			return
		}
		selectAt(m, child, rest[1:], at.Append(Key(e.Key)), fn)
	case IndexKind:
		list, ok := v.([]any)
		if !ok || e.Index < 0 || e.Index >= len(list) {
			return
		}
		selectAt(m, list[e.Index], rest[1:], at.Append(Index(e.Index)), fn)
	case FlattenKind:
		list, ok := v.([]any)
		if !ok {
			return
		}
		for i, item := range list {
			if len(e.TypeConditions) > 0 && !matchesAny(m, item, e.TypeConditions) {
				continue
			}
			selectAt(m, item, rest[1:], at.Append(Index(i)), fn)
		}
	case FragmentKind:
		if !matchesAny(m, v, []string{e.Key}) {
			return
		}
		selectAt(m, v, rest[1:], at, fn)
	case ParentKind:
		// Parents only have meaning relative to a base; see Path.Resolve.
	}
}

// matchesAny reports whether v is an object whose __typename satisfies one
// of conds. Lists match when any element matches; objects without a
// __typename never match.
func matchesAny(m TypeMatcher, v any, conds []string) bool {
	switch v := v.(type) {
	case []any:
		for _, item := range v {
			if matchesAny(m, item, conds) {
				return true
			}
		}
		return false
	case map[string]any:
		typeName, _ := v["__typename"].(string)
		if typeName == "" {
			return false
		}
		for _, c := range conds {
			if c == typeName || (m != nil && m.IsPossibleType(c, typeName)) {
				return true
			}
		}
	}
	return false
}

// Get returns the value at a concrete path.
func Get(data any, p Path) (any, bool) {
	cur := data
	for _, e := range p {
		switch e.Kind {
		case KeyKind:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[e.Key]; !ok {
				return nil, false
			}
		case IndexKind:
			list, ok := cur.([]any)
			if !ok || e.Index < 0 || e.Index >= len(list) {
				return nil, false
			}
			cur = list[e.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Merge deep-merges v into root at the concrete path p, creating objects and
// growing lists along the way, and returns the (possibly new) root.
func Merge(root any, p Path, v any) any {
	if len(p) == 0 {
		return DeepMerge(root, v)
	}
	e := p[0]
	switch e.Kind {
	case KeyKind:
		obj, ok := root.(map[string]any)
		if !ok {
			obj = make(map[string]any)
		}
		obj[e.Key] = Merge(obj[e.Key], p[1:], v)
		return obj
	case IndexKind:
		list, _ := root.([]any)
		for len(list) <= e.Index {
			list = append(list, nil)
		}
		list[e.Index] = Merge(list[e.Index], p[1:], v)
		return list
	default:
		return root
	}
}

// DeepMerge merges src into dst. Objects merge key by key and lists element
// by element; any other combination replaces dst with src. A null list
// element in src is a position Merge padded over and leaves dst's element
// in place.
func DeepMerge(dst, src any) any {
	switch s := src.(type) {
	case map[string]any:
		d, ok := dst.(map[string]any)
		if !ok {
			return s
		}
		for k, sv := range s {
			if dv, exists := d[k]; exists {
				d[k] = DeepMerge(dv, sv)
			} else {
				d[k] = sv
			}
		}
		return d
	case []any:
		d, ok := dst.([]any)
		if !ok {
			return s
		}
		for i, sv := range s {
			if i < len(d) {
				if sv != nil {
					d[i] = DeepMerge(d[i], sv)
				}
			} else {
				d = append(d, sv)
			}
		}
		return d
	default:
		return src
	}
}

// Walk visits the objects addressed by p[:len(p)-1] inside v and calls fn
// with each object and the key named by the last element of p. Fragment
// elements filter by __typename; the last element must be a key.
func Walk(m TypeMatcher, v any, p Path, fn func(obj map[string]any, key string)) {
	if len(p) == 0 || p.Last().Kind != KeyKind {
		return
	}
	last := p.Last()
	Select(m, v, p[:len(p)-1], func(_ Path, target any) {
		if obj, ok := target.(map[string]any); ok {
			fn(obj, last.Key)
		}
	})
}

// Clone returns a deep copy of a decoded JSON value.
func Clone(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}
