package config

import (
	"errors"
	"time"
)

var (
	ErrInvalid         = errors.New("invalid configuration")
	ErrUnknownFrontend = errors.New("unknown frontend")
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrDuplicateName   = errors.New("duplicate name")
	ErrUnsupportedFile = errors.New("unsupported configuration file")
)

// StdoutBackend is the reserved name of the built-in debug sink.
const StdoutBackend = "stdout"

// FrontendType names a frontend variant.
type FrontendType string

const (
	FrontendHTTPRest      FrontendType = "http-rest"
	FrontendHomematicCCU3 FrontendType = "homematic-ccu3"
	FrontendMQTT          FrontendType = "mqtt"
	FrontendNATS          FrontendType = "nats"
	FrontendShell         FrontendType = "shell"
	FrontendJournald      FrontendType = "journald"
)

// BackendType names a backend variant.
type BackendType string

const (
	BackendPostgres BackendType = "postgres"
	BackendSQLite   BackendType = "sqlite"
)

// DataType is the shape a frontend delivers documents in.
type DataType string

const (
	Wide   DataType = "wide"
	Narrow DataType = "narrow"
)

// Aggregate is advisory metadata on a value. It does not change mapping.
type Aggregate string

const (
	AggregateNone                           Aggregate = "None"
	AggregateIncrementingValueWhichMayReset Aggregate = "IncrementingValueWhichMayReset"
)

// Config is a fully loaded pipeline configuration. Slices keep the order
// in which entries were declared.
type Config struct {
	Frontends []FrontendConfig
	Backends  []BackendConfig
	Data      []DataConfig
}

// Frontend returns the frontend declared under name.
func (c *Config) Frontend(name string) (FrontendConfig, bool) {
	for _, f := range c.Frontends {
		if f.Name == name {
			return f, true
		}
	}
	return FrontendConfig{}, false
}

// Backend returns the backend declared under name.
func (c *Config) Backend(name string) (BackendConfig, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}

// FrontendConfig is a tagged union; exactly the field matching Type is set.
type FrontendConfig struct {
	Name string
	Type FrontendType

	HTTPRest      *HTTPRestConfig
	HomematicCCU3 *HomematicCCU3Config
	MQTT          *MQTTConfig
	NATS          *NATSConfig
	Shell         *ShellConfig
	Journald      *JournaldConfig
}

// BasicAuth holds HTTP basic credentials.
type BasicAuth struct {
	Username string  `mapstructure:"username"`
	Password *string `mapstructure:"password"`
}

// HTTPRestConfig polls a JSON endpoint.
type HTTPRestConfig struct {
	URL           string     `mapstructure:"url"`
	FrequencySecs uint32     `mapstructure:"frequency_secs"`
	BasicAuth     *BasicAuth `mapstructure:"basic_auth"`
}

// HomematicCCU3Config polls a Homematic CCU3 over its JSON-RPC API.
type HomematicCCU3Config struct {
	URL           string     `mapstructure:"url"`
	FrequencySecs uint32     `mapstructure:"frequency_secs"`
	Username      string     `mapstructure:"username"`
	Password      string     `mapstructure:"password"`
	BasicAuth     *BasicAuth `mapstructure:"basic_auth"`
}

// MQTTAuth holds broker credentials.
type MQTTAuth struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MQTTConfig connects to an MQTT broker.
type MQTTConfig struct {
	Host             string    `mapstructure:"host"`
	Port             uint16    `mapstructure:"port"`
	ClientID         string    `mapstructure:"client_id"`
	KeepAliveSecs    uint32    `mapstructure:"keep_alive_secs"`
	Auth             *MQTTAuth `mapstructure:"auth"`
	BufferedMessages int       `mapstructure:"buffered_messages"`
}

// NATSConfig connects to a NATS server.
type NATSConfig struct {
	URL              string `mapstructure:"url"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Token            string `mapstructure:"token"`
	BufferedMessages int    `mapstructure:"buffered_messages"`
}

// ShellConfig runs a command periodically.
type ShellConfig struct {
	Cmd           string            `mapstructure:"cmd"`
	FrequencySecs uint32            `mapstructure:"frequency_secs"`
	Regex         map[string]string `mapstructure:"regex"`
}

// JournaldConfig tails the systemd journal.
type JournaldConfig struct {
	Unit        []string `mapstructure:"unit"`
	System      bool     `mapstructure:"system"`
	CurrentUser bool     `mapstructure:"current_user"`
	Directory   string   `mapstructure:"directory"`
}

// BackendConfig is a tagged union; exactly the field matching Type is set.
type BackendConfig struct {
	Name string
	Type BackendType

	Postgres *PostgresConfig
	SQLite   *SQLiteConfig
}

// PostgresConfig connects to a PostgreSQL server.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     uint16 `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// SQLiteConfig opens a SQLite database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// FrontendRef binds a data entry to a frontend.
type FrontendRef struct {
	Name        string   `mapstructure:"name"`
	DataType    DataType `mapstructure:"data_type"`
	MQTTTopic   string   `mapstructure:"mqtt_topic"`
	NATSSubject string   `mapstructure:"nats_subject"`
}

// BackendRef binds a data entry to a backend.
type BackendRef struct {
	Name          string `mapstructure:"name"`
	Table         string `mapstructure:"table"`
	PostgresTable string `mapstructure:"postgres_table"`

	// Data is the name of the owning data entry.
	Data string `mapstructure:"-"`
}

// TableName returns the target table, preferring table over postgres_table.
func (r BackendRef) TableName() string {
	if r.Table != "" {
		return r.Table
	}
	return r.PostgresTable
}

// DataConfig is one pipeline.
type DataConfig struct {
	Name string `mapstructure:"-"`

	Frontend                    FrontendRef `mapstructure:"frontend"`
	Backend                     BackendRef  `mapstructure:"backend"`
	PersistentEverySecs         *uint32     `mapstructure:"persistent_every_secs"`
	CleanNonPersistentAfterDays *uint32     `mapstructure:"clean_non_persistent_after_days"`
	Filter                      string      `mapstructure:"filter"`

	Mapping `mapstructure:",squash"`
}

// PersistentEvery returns the persistence interval, zero when unset.
func (d DataConfig) PersistentEvery() time.Duration {
	if d.PersistentEverySecs == nil {
		return 0
	}
	return time.Duration(*d.PersistentEverySecs) * time.Second
}

// Mapping describes how a document becomes a record.
type Mapping struct {
	DirectValues *DirectValues `mapstructure:"direct_values"`
	Values       []NamedValue  `mapstructure:"-"`
}

// DirectValues is "all" or an explicit list of pointers whose leaves become
// columns automatically.
type DirectValues struct {
	All      bool
	Pointers []string
}

// NamedValue is a value spec with its output column name.
type NamedValue struct {
	Name string
	Value
}

// Value is a pointer or constant plus its processing steps. Exactly one of
// Pointer and ConstantValue is set.
type Value struct {
	Pointer       *string   `mapstructure:"pointer"`
	ConstantValue *string   `mapstructure:"constant_value"`
	Preprocess    string    `mapstructure:"preprocess"`
	Postprocess   string    `mapstructure:"postprocess"`
	Aggregate     Aggregate `mapstructure:"aggregate"`
}

// IsConstant reports whether v yields a constant.
func (v Value) IsConstant() bool {
	return v.ConstantValue != nil
}

// PointerValue returns a pointer spec with no processing.
func PointerValue(pointer string) Value {
	return Value{Pointer: &pointer, Aggregate: AggregateNone}
}

// ConstantValue returns a constant spec with no processing.
func ConstantValue(constant string) Value {
	return Value{ConstantValue: &constant, Aggregate: AggregateNone}
}
