package document

import (
	"iter"
	"maps"
	"slices"
	"strconv"
)

// Walk yields every node of doc with its pointer, depth-first in pre-order,
// starting with the root at pointer "". Object keys are visited in sorted
// byte order and array elements by index. Nodes are yielded by reference.
func Walk(doc Document) iter.Seq2[string, Document] {
	return func(yield func(string, Document) bool) {
		walk("", doc, yield)
	}
}

func walk(pointer string, node Document, yield func(string, Document) bool) bool {
	if !yield(pointer, node) {
		return false
	}

	switch v := node.(type) {
	case []any:
		for i, child := range v {
			if !walk(pointer+"/"+strconv.Itoa(i), child, yield) {
				return false
			}
		}
	case map[string]any:
		for _, key := range slices.Sorted(maps.Keys(v)) {
			if !walk(pointer+"/"+EscapeToken(key), v[key], yield) {
				return false
			}
		}
	}
	return true
}
