package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the connection parameters and pool bounds of one Pool.
type Config struct {
	// URL, when set, is used as the DSN verbatim and the discrete
	// connection fields are ignored.
	URL string

	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	ApplicationName string

	// MinConns connections are opened eagerly by Open and kept idle.
	MinConns int
	// MaxConns caps open connections.
	MaxConns int
	// MaxQueue caps callers waiting for a connection once all MaxConns
	// are in use. Zero means DefaultQueueFactor * MaxConns.
	MaxQueue int

	AcquireTimeout  time.Duration
	ConnectTimeout  time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// LogLevel is the gorm statement log level: silent, error, warn, info.
	LogLevel      string
	SlowThreshold time.Duration
}

// Defaults applied by Open for zero-valued fields.
const (
	DefaultMinConns       = 1
	DefaultMaxConns       = 10
	DefaultAcquireTimeout = 5 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultQueueFactor    = 4
)

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns < 0 {
		c.MinConns = 0
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = DefaultQueueFactor * c.MaxConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	return c
}

// DSN renders the libpq keyword/value connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	pairs := []struct{ key, value string }{
		{"host", c.Host},
		{"port", fmt.Sprint(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Name},
		{"sslmode", c.SSLMode},
		{"application_name", c.ApplicationName},
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		pairs = append(pairs, struct{ key, value string }{"connect_timeout", fmt.Sprint(secs)})
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteDSNValue(p.value))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Redacted returns the DSN with the password masked, for logs.
func (c Config) Redacted() string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			return u.Redacted()
		}
		return "(unparseable url)"
	}
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	return masked.DSN()
}
