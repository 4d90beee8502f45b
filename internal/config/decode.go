package config

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

const (
	defaultMQTTPort      = 1883
	defaultMQTTKeepAlive = 10
	defaultPostgresPort  = 5432
	defaultSSLMode       = "disable"
	defaultNATSURL       = "nats://127.0.0.1:4222"
)

var (
	stringSliceType  = reflect.TypeOf([]string{})
	directValuesType = reflect.TypeOf(DirectValues{})
)

// decodeInto decodes a generic tree into out, rejecting unknown keys.
func decodeInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(oneOrManyHook, directValuesHook),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// oneOrManyHook accepts a single string where a list of strings is expected.
func oneOrManyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == stringSliceType {
		return []string{reflect.ValueOf(data).String()}, nil
	}
	return data, nil
}

// directValuesHook decodes "all" or a list of pointers.
func directValuesHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != directValuesType {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		if v != "all" {
			return nil, fmt.Errorf("direct_values must be \"all\" or a list of pointers, got %q", v)
		}
		return DirectValues{All: true}, nil
	case []any:
		pointers := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("direct_values entries must be strings, got %T", item)
			}
			pointers = append(pointers, s)
		}
		return DirectValues{Pointers: pointers}, nil
	}
	return nil, fmt.Errorf("direct_values must be \"all\" or a list of pointers, got %T", data)
}

// variant splits the "type" tag off a tagged-union table.
func variant(raw any) (string, map[string]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("must be a table, got %T", raw)
	}

	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k != "type" {
			rest[k] = v
		}
	}

	tag, ok := m["type"].(string)
	if !ok {
		return "", nil, fmt.Errorf("missing type")
	}
	return tag, rest, nil
}

func decodeFrontend(name string, raw any) (FrontendConfig, error) {
	f := FrontendConfig{Name: name}
	tag, rest, err := variant(raw)
	if err != nil {
		return f, fmt.Errorf("%w: frontend %q: %v", ErrInvalid, name, err)
	}
	f.Type = FrontendType(tag)

	var target any
	switch f.Type {
	case FrontendHTTPRest:
		f.HTTPRest = &HTTPRestConfig{}
		target = f.HTTPRest
	case FrontendHomematicCCU3:
		f.HomematicCCU3 = &HomematicCCU3Config{}
		target = f.HomematicCCU3
	case FrontendMQTT:
		f.MQTT = &MQTTConfig{Port: defaultMQTTPort, KeepAliveSecs: defaultMQTTKeepAlive}
		target = f.MQTT
	case FrontendNATS:
		f.NATS = &NATSConfig{URL: defaultNATSURL}
		target = f.NATS
	case FrontendShell:
		f.Shell = &ShellConfig{}
		target = f.Shell
	case FrontendJournald:
		f.Journald = &JournaldConfig{}
		target = f.Journald
	default:
		return f, fmt.Errorf("%w: frontend %q: unknown type %q", ErrInvalid, name, tag)
	}

	if err := decodeInto(rest, target); err != nil {
		return f, fmt.Errorf("%w: frontend %q: %v", ErrInvalid, name, err)
	}
	return f, nil
}

func decodeBackend(name string, raw any) (BackendConfig, error) {
	b := BackendConfig{Name: name}
	tag, rest, err := variant(raw)
	if err != nil {
		return b, fmt.Errorf("%w: backend %q: %v", ErrInvalid, name, err)
	}
	b.Type = BackendType(tag)

	var target any
	switch b.Type {
	case BackendPostgres:
		b.Postgres = &PostgresConfig{Port: defaultPostgresPort, SSLMode: defaultSSLMode}
		target = b.Postgres
	case BackendSQLite:
		b.SQLite = &SQLiteConfig{}
		target = b.SQLite
	default:
		return b, fmt.Errorf("%w: backend %q: unknown type %q", ErrInvalid, name, tag)
	}

	if err := decodeInto(rest, target); err != nil {
		return b, fmt.Errorf("%w: backend %q: %v", ErrInvalid, name, err)
	}
	return b, nil
}

func decodeData(src *source, name string, raw any) (DataConfig, error) {
	d := DataConfig{Name: name}
	m, ok := raw.(map[string]any)
	if !ok {
		return d, fmt.Errorf("%w: data %q: must be a table, got %T", ErrInvalid, name, raw)
	}

	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k != "values" {
			rest[k] = v
		}
	}
	if err := decodeInto(rest, &d); err != nil {
		return d, fmt.Errorf("%w: data %q: %v", ErrInvalid, name, err)
	}
	d.Backend.Data = name

	if rawValues, ok := m["values"]; ok {
		values, ok := rawValues.(map[string]any)
		if !ok {
			return d, fmt.Errorf("%w: data %q: values must be a table, got %T", ErrInvalid, name, rawValues)
		}
		for _, key := range src.keys(values, "data", name, "values") {
			v, err := decodeValue(values[key])
			if err != nil {
				return d, fmt.Errorf("%w: data %q: value %q: %v", ErrInvalid, name, key, err)
			}
			d.Values = append(d.Values, NamedValue{Name: key, Value: v})
		}
	}
	return d, nil
}

// decodeValue accepts the pointer shorthand or a full value table.
func decodeValue(raw any) (Value, error) {
	if s, ok := raw.(string); ok {
		return PointerValue(s), nil
	}

	var v Value
	if err := decodeInto(raw, &v); err != nil {
		return v, err
	}
	if v.Aggregate == "" {
		v.Aggregate = AggregateNone
	}
	return v, nil
}
