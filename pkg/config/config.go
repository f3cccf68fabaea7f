// Package config is the typed view of the honeypot list and global knobs
// consumed by the Supervisor. Loading and schema validation are
// collaborators the core depends on only through this package's types; the
// JSON file format is entirely described by config.schema.json.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

//go:embed config.schema.json
var schemaJSON []byte

// Options is the enumerated container option bag. Every recognized key is
// a named field; there is no dynamic try-fetch-or-default idiom: a missing
// key means the zero value, with no implicit coercion.
type Options struct {
	Command     []string `json:"command,omitempty" mapstructure:"command"`
	Environment []string `json:"environment,omitempty" mapstructure:"environment"`
	Hostname    string   `json:"hostname,omitempty" mapstructure:"hostname"`
	Network     string   `json:"network,omitempty" mapstructure:"network"`
	NetworkMode string   `json:"network_mode,omitempty" mapstructure:"network_mode"`
	ReadOnly    bool     `json:"read_only,omitempty" mapstructure:"read_only"`
	User        string   `json:"user,omitempty" mapstructure:"user"`
	Volumes     []string `json:"volumes,omitempty" mapstructure:"volumes"`
}

// HoneypotSpec is one configured honeypot. Immutable once loaded: the
// Connection Manager reads it but never mutates it.
type HoneypotSpec struct {
	Name          string  `json:"name" mapstructure:"name"`
	Image         string  `json:"image" mapstructure:"image"`
	Port          int     `json:"port" mapstructure:"port"`
	ContainerPort int     `json:"container_port" mapstructure:"container_port"`
	Options       Options `json:"options,omitempty" mapstructure:"options"`

	// DialTimeoutSeconds, when positive, bounds the dial loop. Zero
	// preserves unbounded-retry behavior.
	DialTimeoutSeconds int `json:"dial_timeout_seconds,omitempty" mapstructure:"dial_timeout_seconds"`
}

// GlobalConfig is the validated, fully-resolved configuration the
// Supervisor builds Connection Managers from.
type GlobalConfig struct {
	Bind           string         `json:"bind" mapstructure:"bind"`
	MaxConnections int            `json:"max_connections" mapstructure:"max_connections"`
	Honeypots      []HoneypotSpec `json:"honeypots" mapstructure:"honeypots"`
}

// HoneypotsNum is the derived honeypot count used for backlog sizing.
func (c *GlobalConfig) HoneypotsNum() int {
	return len(c.Honeypots)
}

// Overrides carries CLI-flag values that take precedence over the config
// file.
type Overrides struct {
	Bind           string
	HasBind        bool
	MaxConnections int
	HasMaxConn     bool
}

// Load reads path as JSON, validates it against the embedded
// config.schema.json, applies overrides, and returns the resolved config.
func Load(path string, overrides Overrides) (*GlobalConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open configuration file: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("server configuration is invalid: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("cannot parse configuration file: %w", err)
	}

	if overrides.HasBind {
		v.Set("bind", overrides.Bind)
	}
	if overrides.HasMaxConn {
		v.Set("max_connections", overrides.MaxConnections)
	}

	var cfg GlobalConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the invariants the JSON schema alone can't express: a
// valid IPv4 bind address and a per-listener backlog that won't floor to
// zero.
func (c *GlobalConfig) Validate() error {
	if net.ParseIP(c.Bind) == nil || net.ParseIP(c.Bind).To4() == nil {
		return fmt.Errorf("bind address %q is not a valid IPv4 address", c.Bind)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be a positive number, got %d", c.MaxConnections)
	}
	n := c.HoneypotsNum()
	if n == 0 {
		return fmt.Errorf("no honeypots configured")
	}
	if n > c.MaxConnections {
		return fmt.Errorf("honeypots_num (%d) exceeds max_connections (%d): per-listener backlog would floor to zero", n, c.MaxConnections)
	}
	return nil
}

func validateSchema(raw []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("loading embedded schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compiling embedded schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return schema.Validate(doc)
}
