package transform

import "strings"

// segment is one dotted-path component; wildcard marks a "[*]" suffix
// that fans out across an array, per §4.3's "wildcard path matches
// element-wise" rule.
type segment struct {
	key      string
	wildcard bool
}

func parsePath(path string) []segment {
	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		if strings.HasSuffix(p, "[*]") {
			segs = append(segs, segment{key: strings.TrimSuffix(p, "[*]"), wildcard: true})
		} else {
			segs = append(segs, segment{key: p})
		}
	}
	return segs
}

// getPath resolves segs against v. A missing prefix resolves to (nil,
// false), never panics; callers treat that as "render empty".
func getPath(v interface{}, segs []segment) (interface{}, bool) {
	if len(segs) == 0 {
		return v, true
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	seg := segs[0]
	child, exists := m[seg.key]
	if !exists {
		return nil, false
	}
	if !seg.wildcard {
		return getPath(child, segs[1:])
	}
	arr, ok := child.([]interface{})
	if !ok {
		return nil, false
	}
	if len(segs) == 1 {
		return arr, true
	}
	results := make([]interface{}, 0, len(arr))
	for _, e := range arr {
		if val, ok := getPath(e, segs[1:]); ok {
			results = append(results, val)
		}
	}
	return results, true
}

// deletePath removes the value at segs from v in place. Used by
// exclude, which must run before any transform rule sees the data.
func deletePath(v interface{}, segs []segment) {
	m, ok := v.(map[string]interface{})
	if !ok || len(segs) == 0 {
		return
	}
	seg := segs[0]
	if len(segs) == 1 {
		delete(m, seg.key)
		return
	}
	child, exists := m[seg.key]
	if !exists {
		return
	}
	if !seg.wildcard {
		deletePath(child, segs[1:])
		return
	}
	arr, ok := child.([]interface{})
	if !ok {
		return
	}
	for _, e := range arr {
		deletePath(e, segs[1:])
	}
}

// setPath writes value at segs into dst, creating intermediate maps as
// needed. Wildcard segments are terminal: the resolved slice is stored
// directly rather than mirrored element-by-element, which is sufficient
// for include's "retain this path" semantics.
func setPath(dst map[string]interface{}, segs []segment, value interface{}) {
	if len(segs) == 0 {
		return
	}
	seg := segs[0]
	if len(segs) == 1 || seg.wildcard {
		dst[seg.key] = value
		return
	}
	next, ok := dst[seg.key].(map[string]interface{})
	if !ok {
		next = map[string]interface{}{}
		dst[seg.key] = next
	}
	setPath(next, segs[1:], value)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
