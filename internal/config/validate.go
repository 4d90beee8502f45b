package config

import (
	"fmt"
	"strings"

	"github.com/iot2db/iot2db/internal/document"
	"go.uber.org/multierr"
)

// SupportsNarrow reports whether a frontend type can deliver narrow data.
func (t FrontendType) SupportsNarrow() bool {
	return t == FrontendMQTT || t == FrontendNATS
}

// Polling reports whether a frontend type polls on a fixed frequency.
func (t FrontendType) Polling() bool {
	switch t {
	case FrontendHTTPRest, FrontendHomematicCCU3, FrontendShell:
		return true
	}
	return false
}

// Validate checks cross references and per-entry constraints. Every
// problem found is returned, combined with multierr.
func (c *Config) Validate() error {
	var errs error
	for _, f := range c.Frontends {
		errs = multierr.Append(errs, f.validate())
	}
	for _, b := range c.Backends {
		errs = multierr.Append(errs, b.validate())
	}
	for _, d := range c.Data {
		errs = multierr.Append(errs, c.validateData(d))
	}
	return errs
}

func invalid(kind, name, format string, args ...any) error {
	return fmt.Errorf("%w: %s %q: %s", ErrInvalid, kind, name, fmt.Sprintf(format, args...))
}

func (f FrontendConfig) validate() error {
	var errs error
	switch f.Type {
	case FrontendHTTPRest:
		if f.HTTPRest.URL == "" {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "url is required"))
		}
		if f.HTTPRest.FrequencySecs == 0 {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "frequency_secs must be positive"))
		}
	case FrontendHomematicCCU3:
		if f.HomematicCCU3.URL == "" {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "url is required"))
		}
		if f.HomematicCCU3.FrequencySecs == 0 {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "frequency_secs must be positive"))
		}
	case FrontendMQTT:
		if f.MQTT.Host == "" {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "host is required"))
		}
	case FrontendNATS:
		if f.NATS.URL == "" {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "url is required"))
		}
	case FrontendShell:
		if strings.TrimSpace(f.Shell.Cmd) == "" {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "cmd is required"))
		}
		if f.Shell.FrequencySecs == 0 {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "frequency_secs must be positive"))
		}
	case FrontendJournald:
		if len(f.Journald.Unit) == 0 {
			errs = multierr.Append(errs, invalid("frontend", f.Name, "unit is required"))
		}
	}
	return errs
}

func (b BackendConfig) validate() error {
	var errs error
	if b.Name == StdoutBackend {
		errs = multierr.Append(errs, invalid("backend", b.Name, "name is reserved for the built-in debug sink"))
	}
	switch b.Type {
	case BackendPostgres:
		if b.Postgres.Host == "" {
			errs = multierr.Append(errs, invalid("backend", b.Name, "host is required"))
		}
		if b.Postgres.Database == "" {
			errs = multierr.Append(errs, invalid("backend", b.Name, "database is required"))
		}
	case BackendSQLite:
		if b.SQLite.Path == "" {
			errs = multierr.Append(errs, invalid("backend", b.Name, "path is required"))
		}
	}
	return errs
}

func (c *Config) validateData(d DataConfig) error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, invalid("data", d.Name, format, args...))
	}

	frontend, ok := c.Frontend(d.Frontend.Name)
	if !ok {
		errs = multierr.Append(errs, fmt.Errorf("%w: data %q: %q", ErrUnknownFrontend, d.Name, d.Frontend.Name))
	}

	switch d.Frontend.DataType {
	case Wide:
	case Narrow:
		if ok && !frontend.Type.SupportsNarrow() {
			add("frontend %q of type %s only delivers wide data", frontend.Name, frontend.Type)
		}
		if d.DirectValues != nil {
			add("direct_values cannot be used with narrow data")
		}
	default:
		add("data_type must be %q or %q, got %q", Wide, Narrow, d.Frontend.DataType)
	}

	if ok {
		switch frontend.Type {
		case FrontendMQTT:
			if d.Frontend.MQTTTopic == "" {
				add("mqtt_topic is required for mqtt frontend %q", frontend.Name)
			}
		case FrontendNATS:
			if d.Frontend.NATSSubject == "" {
				add("nats_subject is required for nats frontend %q", frontend.Name)
			}
		}
	}

	if d.Backend.Name != StdoutBackend {
		backend, ok := c.Backend(d.Backend.Name)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: data %q: %q", ErrUnknownBackend, d.Name, d.Backend.Name))
		} else if d.Backend.TableName() == "" {
			add("backend %q of type %s needs a table", backend.Name, backend.Type)
		}
	}

	if d.PersistentEverySecs != nil && *d.PersistentEverySecs == 0 {
		add("persistent_every_secs must be positive")
	}

	if len(d.Values) == 0 && d.DirectValues == nil {
		add("no values and no direct_values")
	}
	if d.DirectValues != nil {
		for _, p := range d.DirectValues.Pointers {
			if _, err := document.ParsePointer(p); err != nil {
				add("direct_values: %v", err)
			}
		}
	}

	for _, v := range d.Values {
		switch {
		case v.Pointer != nil && v.ConstantValue != nil:
			add("value %q: pointer and constant_value are exclusive", v.Name)
		case v.Pointer == nil && v.ConstantValue == nil:
			add("value %q: needs pointer or constant_value", v.Name)
		case v.Pointer != nil:
			if _, err := document.ParsePointer(*v.Pointer); err != nil {
				add("value %q: %v", v.Name, err)
			}
		}
		switch v.Aggregate {
		case AggregateNone, AggregateIncrementingValueWhichMayReset:
		default:
			add("value %q: unknown aggregate %q", v.Name, v.Aggregate)
		}
	}
	return errs
}
