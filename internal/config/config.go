package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration.
type Config struct {
	Server      Server      `mapstructure:"server" yaml:"server"`
	Database    Connection  `mapstructure:"database" yaml:"database"`
	Pool        Pool        `mapstructure:"pool" yaml:"pool"`
	Gateway     Gateway     `mapstructure:"gateway" yaml:"gateway"`
	Assignments Assignments `mapstructure:"assignments" yaml:"assignments"`
	Hint        Hint        `mapstructure:"hint" yaml:"hint"`
	Log         Log         `mapstructure:"log" yaml:"log"`
}

// Server holds HTTP listener settings.
type Server struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Connection describes the sandbox database queries run against.
// The account should only have read privileges.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	// Keyring loads an empty Password from the OS keyring.
	Keyring bool `mapstructure:"keyring" yaml:"keyring"`
}

// Pool bounds the shared connection pool.
type Pool struct {
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
}

// Gateway holds query execution limits.
type Gateway struct {
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout"`
}

// Assignments locates the assignment store.
type Assignments struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Hint configures the language-model hint service. A negative MaxRetries
// disables retries.
type Hint struct {
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model      string        `mapstructure:"model" yaml:"model"`
	MaxTokens  int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Keyring    bool          `mapstructure:"keyring" yaml:"keyring"`
}

// Log selects the log level and output format.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Configured reports whether enough of the connection is set to dial.
func (c Connection) Configured() bool {
	return c.Host != "" && c.Database != ""
}

// DSN builds a PostgreSQL connection string from the connection profile.
func (c Connection) DSN() string {
	u := url.URL{
		Scheme: "postgresql",
		Host:   c.Host,
		Path:   "/" + c.Database,
	}
	if c.Port > 0 {
		u.Host += ":" + strconv.Itoa(c.Port)
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection string into a Connection.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn := Connection{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, _ = strconv.Atoi(portStr)
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	conn.Name = fmt.Sprintf("postgres-%s-%d-%s", conn.Host, conn.Port, conn.Database)

	return conn, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (cfg *Config) Validate() error {
	var errs []error
	if d := cfg.Database.Driver; d != "" && d != "postgres" {
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", d))
	}
	if cfg.Pool.MaxConns <= 0 {
		errs = append(errs, errors.New("pool.max_conns must be positive"))
	}
	if cfg.Pool.MinConns < 0 || cfg.Pool.MinConns > cfg.Pool.MaxConns {
		errs = append(errs, errors.New("pool.min_conns must be between 0 and pool.max_conns"))
	}
	if cfg.Pool.AcquireTimeout <= 0 {
		errs = append(errs, errors.New("pool.acquire_timeout must be positive"))
	}
	if cfg.Gateway.StatementTimeout <= 0 {
		errs = append(errs, errors.New("gateway.statement_timeout must be positive"))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}
