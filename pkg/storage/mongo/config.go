package mongo

import (
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

type Config struct {
	URI    string
	DBName string
}

func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: mongo URI", ErrConfParamMissing)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: mongo DB name", ErrConfParamMissing)
	}
	return nil
}

func (c *Config) Options() *options.ClientOptions {
	return options.Client().ApplyURI(c.URI)
}

// String hides the password of the connection string.
func (c Config) String() string {
	uri := c.URI
	if u, err := url.Parse(c.URI); err == nil {
		uri = u.Redacted()
	}
	return fmt.Sprintf("mongo{uri:%s db:%s}", uri, c.DBName)
}
