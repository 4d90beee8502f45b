package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkOrder(t *testing.T) {
	doc, err := Decode([]byte(`{"foo":{"baz":[1,2,"3"]},"bar":42}`))
	require.NoError(t, err)

	var pointers []string
	for pointer := range Walk(doc) {
		pointers = append(pointers, pointer)
	}

	assert.Equal(t, []string{
		"",
		"/bar",
		"/foo",
		"/foo/baz",
		"/foo/baz/0",
		"/foo/baz/1",
		"/foo/baz/2",
	}, pointers)
}

func TestWalkStopsEarly(t *testing.T) {
	doc, err := Decode([]byte(`{"a":1,"b":2,"c":3}`))
	require.NoError(t, err)

	var seen []string
	for pointer := range Walk(doc) {
		seen = append(seen, pointer)
		if pointer == "/a" {
			break
		}
	}
	assert.Equal(t, []string{"", "/a"}, seen)
}

func TestWalkEscapesKeys(t *testing.T) {
	doc := map[string]any{"a/b": map[string]any{"c~d": "x"}}

	var pointers []string
	for pointer, node := range Walk(doc) {
		pointers = append(pointers, pointer)
		if pointer == "/a~1b/c~0d" {
			assert.Equal(t, "x", node)
		}
	}
	assert.Equal(t, []string{"", "/a~1b", "/a~1b/c~0d"}, pointers)
}

func TestDecodeKeepsNumbers(t *testing.T) {
	doc, err := Decode([]byte(`{"big":12345678901234567890,"f":1.50}`))
	require.NoError(t, err)

	m := doc.(map[string]any)
	assert.Equal(t, json.Number("12345678901234567890"), m["big"])
	assert.Equal(t, json.Number("1.50"), m["f"])
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		node Document
		want string
	}{
		{"string is unquoted", "hello", "hello"},
		{"number keeps text", json.Number("1.50"), "1.50"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"array", []any{json.Number("1"), "2"}, `[1,"2"]`},
		{"object keys sorted", map[string]any{"b": json.Number("1"), "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup(t *testing.T) {
	doc, err := Decode([]byte(`{"a":{"b":[10,{"c":null}]},"x/y":"slash","n":null}`))
	require.NoError(t, err)

	tests := []struct {
		name    string
		pointer string
		want    Document
		found   bool
	}{
		{"root", "", doc, true},
		{"nested array", "/a/b/0", json.Number("10"), true},
		{"null value is present", "/a/b/1/c", nil, true},
		{"escaped key", "/x~1y", "slash", true},
		{"missing key", "/a/z", nil, false},
		{"index out of range", "/a/b/5", nil, false},
		{"non numeric index", "/a/b/first", nil, false},
		{"second element", "/a/b/1", map[string]any{"c": nil}, true},
		{"leading zero index", "/a/b/01", nil, false},
		{"plus signed index", "/a/b/+1", nil, false},
		{"negative zero index", "/a/b/-0", nil, false},
		{"empty index", "/a/b/", nil, false},
		{"past the end index", "/a/b/-", nil, false},
		{"through null", "/n/deeper", nil, false},
		{"through leaf", "/x~1y/deeper", nil, false},
		{"invalid pointer", "a/b", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(doc, tt.pointer)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParsePointer(t *testing.T) {
	p, err := ParsePointer("/a~1b/c~0d")
	require.NoError(t, err)
	assert.Equal(t, "/a~1b/c~0d", p.String())
	assert.Equal(t, []string{"a/b", "c~d"}, p.Tokens())

	_, err = ParsePointer("no-slash")
	assert.Error(t, err)
}

func TestSegments(t *testing.T) {
	assert.Nil(t, Segments(""))
	assert.Equal(t, []string{"a/b", "0", "c~d"}, Segments("/a~1b/0/c~0d"))
}

func TestIsLeaf(t *testing.T) {
	assert.True(t, IsLeaf("x"))
	assert.True(t, IsLeaf(nil))
	assert.False(t, IsLeaf(map[string]any{}))
	assert.False(t, IsLeaf([]any{}))
}
