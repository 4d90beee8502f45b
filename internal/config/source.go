package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
	"github.com/tidwall/jsonc"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML  Format = "toml"
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
)

// FormatOf derives the format from a file extension.
func FormatOf(path string) (Format, error) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	switch strings.ToLower(path[i+1:]) {
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "jsonc":
		return FormatJSONC, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
}

// source is one decoded configuration file. order records, for every
// object path, the keys in the order the file declares them.
type source struct {
	name  string
	root  map[string]any
	order map[string][]string
}

func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

// keys returns the keys of m, which lives at path, in declared order. Keys
// the order index does not know follow in sorted order.
func (s *source) keys(m map[string]any, path ...string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, key := range s.order[pathKey(path)] {
		if _, ok := m[key]; ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(m)) {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

func decodeSource(name string, data []byte, format Format) (*source, error) {
	var (
		src *source
		err error
	)
	switch format {
	case FormatTOML:
		src, err = decodeTOML(data)
	case FormatYAML:
		src, err = decodeYAML(data)
	case FormatJSON:
		src, err = decodeJSON(data)
	case FormatJSONC:
		src, err = decodeJSON(jsonc.ToJSON(data))
	default:
		err = fmt.Errorf("%w: format %q", ErrUnsupportedFile, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	src.name = name
	if src.root == nil {
		src.root = map[string]any{}
	}
	return src, nil
}

func decodeTOML(data []byte) (*source, error) {
	var root map[string]any
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	order, err := tomlKeyOrder(data)
	if err != nil {
		return nil, err
	}
	return &source{root: root, order: order}, nil
}

// tomlKeyOrder replays the TOML expressions to find the order in which keys
// are declared, including keys of inline tables.
func tomlKeyOrder(data []byte) (map[string][]string, error) {
	order := make(map[string][]string)
	seen := make(map[string]bool)
	add := func(path []string) {
		for i := range path {
			full := pathKey(path[:i+1])
			if seen[full] {
				continue
			}
			seen[full] = true
			parent := pathKey(path[:i])
			order[parent] = append(order[parent], path[i])
		}
	}

	var inline func(prefix []string, value *unstable.Node)
	inline = func(prefix []string, value *unstable.Node) {
		if value.Kind != unstable.InlineTable {
			return
		}
		children := value.Children()
		for children.Next() {
			kv := children.Node()
			path := append(slices.Clone(prefix), tomlKey(kv.Key())...)
			add(path)
			inline(path, kv.Value())
		}
	}

	var (
		p     unstable.Parser
		table []string
	)
	p.Reset(data)
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table, unstable.ArrayTable:
			table = tomlKey(expr.Key())
			add(table)
		case unstable.KeyValue:
			path := append(slices.Clone(table), tomlKey(expr.Key())...)
			add(path)
			inline(path, expr.Value())
		}
	}
	return order, p.Error()
}

func tomlKey(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

func decodeYAML(data []byte) (*source, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}

	order := make(map[string][]string)
	root, err := fromMapSlice(doc, nil, order)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return &source{order: order}, nil
	}
	m, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalid)
	}
	return &source{root: m, order: order}, nil
}

func fromMapSlice(v any, path []string, order map[string][]string) (any, error) {
	switch t := v.(type) {
	case yaml.MapSlice:
		m := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for _, item := range t {
			key, ok := item.Key.(string)
			if !ok {
				key = fmt.Sprint(item.Key)
			}
			child, err := fromMapSlice(item.Value, append(slices.Clone(path), key), order)
			if err != nil {
				return nil, err
			}
			m[key] = child
			keys = append(keys, key)
		}
		order[pathKey(path)] = keys
		return m, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			child, err := fromMapSlice(item, path, order)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return v, nil
	}
}

func decodeJSON(data []byte) (*source, error) {
	var root map[string]any
	if err := sonic.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	node, err := sonic.Get(data)
	if err != nil {
		return nil, err
	}
	order := make(map[string][]string)
	if err := jsonKeyOrder(&node, nil, order); err != nil {
		return nil, err
	}
	return &source{root: root, order: order}, nil
}

func jsonKeyOrder(node *ast.Node, path []string, order map[string][]string) error {
	if node.TypeSafe() != ast.V_OBJECT {
		return nil
	}
	it, err := node.Properties()
	if err != nil {
		return err
	}

	var (
		pair ast.Pair
		keys []string
	)
	for it.Next(&pair) {
		keys = append(keys, pair.Key)
		value := pair.Value
		if err := jsonKeyOrder(&value, append(slices.Clone(path), pair.Key), order); err != nil {
			return err
		}
	}
	order[pathKey(path)] = keys
	return nil
}
