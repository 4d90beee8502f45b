package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// Pointer is a parsed RFC 6901 JSON pointer.
type Pointer struct {
	raw     string
	pointer jsonpointer.Pointer
}

// ParsePointer parses s. The empty string addresses the whole document.
func ParsePointer(s string) (Pointer, error) {
	p, err := jsonpointer.New(s)
	if err != nil {
		return Pointer{}, fmt.Errorf("invalid pointer %q: %w", s, err)
	}
	return Pointer{raw: s, pointer: p}, nil
}

// MustParsePointer is ParsePointer for literals known to be valid.
func MustParsePointer(s string) Pointer {
	p, err := ParsePointer(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pointer in its escaped form.
func (p Pointer) String() string {
	return p.raw
}

// Tokens returns the unescaped reference tokens.
func (p Pointer) Tokens() []string {
	return p.pointer.DecodedTokens()
}

// Lookup resolves p against doc. A missing path is reported with ok=false
// and is never an error.
func (p Pointer) Lookup(doc Document) (Document, bool) {
	node := doc
	for _, token := range p.pointer.DecodedTokens() {
		switch v := node.(type) {
		case map[string]any:
			child, ok := v[token]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			i, ok := arrayIndex(token)
			if !ok || i >= len(v) {
				return nil, false
			}
			node = v[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// arrayIndex parses an RFC 6901 array index: "0" or digits without a
// leading zero. Signs are not allowed.
func arrayIndex(token string) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Lookup parses pointer and resolves it against doc.
func Lookup(doc Document, pointer string) (Document, bool) {
	p, err := ParsePointer(pointer)
	if err != nil {
		return nil, false
	}
	return p.Lookup(doc)
}

// EscapeToken escapes a single reference token ("~" to "~0", "/" to "~1").
func EscapeToken(token string) string {
	return jsonpointer.Escape(token)
}

// UnescapeToken reverses EscapeToken.
func UnescapeToken(token string) string {
	return jsonpointer.Unescape(token)
}

// Segments splits an escaped pointer into its unescaped tokens.
func Segments(pointer string) []string {
	if pointer == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, part := range parts {
		parts[i] = UnescapeToken(part)
	}
	return parts
}
