package value

import (
	"strconv"
	"strings"
)

// ReplaceLeaf replaces the value at a dotted path inside root with
// replacement, returning a new Value with all intermediate structure
// preserved and sibling fields untouched. If the path does not resolve to
// an existing leaf, root is returned unchanged and ok is false.
//
// Each segment is an object key or, against an array, a non-negative
// decimal index; arrays along the path are copied with the indexed element
// replaced, just as objects are.
func ReplaceLeaf(root Value, path string, replacement Value) (Value, bool) {
	segments := strings.Split(path, ".")
	return replaceAt(root, segments, replacement)
}

func replaceAt(cur Value, segments []string, replacement Value) (Value, bool) {
	if len(segments) == 0 {
		return replacement, true
	}
	seg := segments[0]
	rest := segments[1:]

	switch cur.kind {
	case KindObject:
		child, ok := cur.obj[seg]
		if !ok {
			return cur, false
		}
		var newChild Value
		if len(rest) == 0 {
			newChild = replacement
		} else {
			var replaced bool
			newChild, replaced = replaceAt(child, rest, replacement)
			if !replaced {
				return cur, false
			}
		}
		newObj := make(map[string]Value, len(cur.obj))
		for k, v := range cur.obj {
			newObj[k] = v
		}
		newObj[seg] = newChild
		return Object(newObj), true
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(cur.arr) {
			return cur, false
		}
		var newChild Value
		if len(rest) == 0 {
			newChild = replacement
		} else {
			var replaced bool
			newChild, replaced = replaceAt(cur.arr[idx], rest, replacement)
			if !replaced {
				return cur, false
			}
		}
		newArr := make([]Value, len(cur.arr))
		copy(newArr, cur.arr)
		newArr[idx] = newChild
		return Array(newArr), true
	default:
		return cur, false
	}
}
