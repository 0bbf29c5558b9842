// Package config loads named database connection definitions from YAML,
// including ordered backup connections used when the primary is unreachable.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported connection types.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
	TypeSQLite3  = "sqlite3"
)

var knownTypes = map[string]bool{
	TypeMySQL:    true,
	"mariadb":    true,
	TypePostgres: true,
	"postgresql": true,
	"pgsql":      true,
	TypeSQLite:   true,
	TypeSQLite3:  true,
}

// Validation errors.
var (
	ErrNoConnections  = errors.New("config: no connections defined")
	ErrUnknownType    = errors.New("config: unknown connection type")
	ErrMissingDefault = errors.New("config: default connection is not defined")
	ErrNoDatabase     = errors.New("config: database is required")
)

// Config is the root of a connection configuration file.
type Config struct {
	// Default names the connection used when callers do not ask for one.
	Default     string                `yaml:"default"`
	Connections map[string]Connection `yaml:"connections"`
}

// Connection describes how to reach one database, plus the fallbacks tried
// in order when it cannot be reached.
type Connection struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Charset  string `yaml:"charset"`
	// Persistent keeps idle connections in the pool. A backup that leaves it
	// unset inherits the primary's value.
	Persistent    *bool             `yaml:"persistent"`
	DriverOptions map[string]string `yaml:"driver_options"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	// WaitBeforeConnect is slept before this entry is tried as a backup.
	WaitBeforeConnect time.Duration `yaml:"wait_before_connect"`
	// LogError selects error severity (instead of notice) when falling back to this backup.
	LogError bool `yaml:"log_error"`

	Backups []Connection `yaml:"backup_connections"`
}

// IsPersistent reports whether idle connections are kept.
func (c Connection) IsPersistent() bool {
	return c.Persistent != nil && *c.Persistent
}

// Parse decodes YAML configuration, expanding ${VAR} references from the
// environment, and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse yaml: %w", err)
	}

	cfg.applyInheritance()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the YAML file at path. Any envFiles are loaded first with
// godotenv so their variables are available for ${VAR} expansion; variables
// already present in the environment win.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("config: failed to load env files: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks that the configuration can be used to open connections.
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return ErrNoConnections
	}
	if c.Default != "" {
		if _, ok := c.Connections[c.Default]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingDefault, c.Default)
		}
	}

	for _, name := range c.Names() {
		conn := c.Connections[name]
		if err := conn.Validate(); err != nil {
			return fmt.Errorf("connection %q: %w", name, err)
		}
		for i, backup := range conn.Backups {
			if err := backup.Validate(); err != nil {
				return fmt.Errorf("connection %q backup #%d: %w", name, i+1, err)
			}
		}
	}
	return nil
}

// Validate checks a single connection block.
func (c Connection) Validate() error {
	if !knownTypes[c.Type] {
		return fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
	if c.Database == "" {
		return ErrNoDatabase
	}
	return nil
}

// Names returns the configured connection names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named connection.
func (c *Config) Get(name string) (Connection, bool) {
	conn, ok := c.Connections[name]
	return conn, ok
}

// applyInheritance fills unset backup fields from their primary connection.
func (c *Config) applyInheritance() {
	for name, conn := range c.Connections {
		for i := range conn.Backups {
			conn.Backups[i] = conn.Backups[i].inherit(conn)
		}
		c.Connections[name] = conn
	}
}

// inherit returns c with zero-valued fields taken from parent. Backups of a
// backup are not followed.
func (c Connection) inherit(parent Connection) Connection {
	if c.Type == "" {
		c.Type = parent.Type
	}
	if c.Host == "" {
		c.Host = parent.Host
	}
	if c.Port == 0 {
		c.Port = parent.Port
	}
	if c.Database == "" {
		c.Database = parent.Database
	}
	if c.Username == "" {
		c.Username = parent.Username
	}
	if c.Password == "" {
		c.Password = parent.Password
	}
	if c.Charset == "" {
		c.Charset = parent.Charset
	}
	if c.DriverOptions == nil && parent.DriverOptions != nil {
		c.DriverOptions = make(map[string]string, len(parent.DriverOptions))
		for k, v := range parent.DriverOptions {
			c.DriverOptions[k] = v
		}
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = parent.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = parent.MaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = parent.ConnMaxLifetime
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = parent.ConnectTimeout
	}
	if c.Persistent == nil {
		c.Persistent = parent.Persistent
	}
	c.Backups = nil
	return c
}
