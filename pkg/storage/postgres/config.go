package postgres

import (
	"fmt"
	"net/url"
	"strings"
)

// Config describes a PostgreSQL connection. URL, when set, takes precedence
// over the individual fields.
type Config struct {
	URL      string
	User     string
	Password string
	Host     string
	Port     string
	DBName   string
}

func (c *Config) ConString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, url.QueryEscape(c.Password), c.Host, c.Port, c.DBName)
}

func (c Config) String() string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			return u.Redacted()
		}
	}
	c.Password = strings.Repeat("*", len([]rune(c.Password)))

	return fmt.Sprintf("%#v", c)
}

func (c *Config) IsValid() bool {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		return err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql")
	}
	if c.User == "" || c.Password == "" || c.Host == "" || c.Port == "" || c.DBName == "" {
		return false
	}
	return true
}
