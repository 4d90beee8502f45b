package document

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// Document is one decoded unit of input. It is nil, bool, json.Number,
// string, []any or map[string]any.
type Document = any

var codec = sonic.Config{
	UseNumber:   true,
	SortMapKeys: true,
}.Froze()

// Decode parses JSON text into a Document. Numbers keep their textual form.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Encode renders doc as compact JSON with sorted object keys.
func Encode(doc Document) ([]byte, error) {
	return codec.Marshal(doc)
}

// Text returns the textual value of a node: the content of a string, the
// canonical JSON text of anything else.
func Text(node Document) (string, error) {
	switch v := node.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "null", nil
	}
	text, err := codec.MarshalToString(node)
	if err != nil {
		return "", fmt.Errorf("encode node: %w", err)
	}
	return text, nil
}

// IsLeaf reports whether node is neither an object nor an array.
func IsLeaf(node Document) bool {
	switch node.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}
