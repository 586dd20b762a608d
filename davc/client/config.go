package client

import (
	"net/http"
	"time"
)

type config struct {
	Schema     string
	Host       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Option func(*config)

func WithSchema(s string) Option {
	return func(c *config) {
		c.Schema = s
	}
}

func WithHost(e string) Option {
	return func(c *config) {
		c.Host = e
	}
}

func WithTimeout(t time.Duration) Option {
	return func(c *config) {
		c.Timeout = t
	}
}

// WithHTTPClient replaces the default client, a client without cookie jar gets one.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *config) {
		c.HTTPClient = cli
	}
}
