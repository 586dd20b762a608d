package server

import (
	"github.com/xxxsen/davconnector/cacheapi"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davclient"
	"github.com/xxxsen/davconnector/document"
	"github.com/xxxsen/davconnector/server/handler/pluginconfig"
	"github.com/xxxsen/davconnector/server/trust"
)

const (
	defaultSessionMaxAge = 12 * 60 * 60
	defaultMaxBodySize   = 16 * 1024 * 1024
)

type config struct {
	creds         credstore.ICredentialStore
	dav           davclient.IClient
	docs          document.IManager
	rootCache     cacheapi.ICache[string, string]
	policy        trust.IHostPolicy
	clientOptions *pluginconfig.Options
	sessionMaxAge int
	maxBodySize   int64
}

type Option func(c *config)

func WithCredentialStore(s credstore.ICredentialStore) Option {
	return func(c *config) {
		c.creds = s
	}
}

func WithDavClient(cli davclient.IClient) Option {
	return func(c *config) {
		c.dav = cli
	}
}

func WithDocumentManager(m document.IManager) Option {
	return func(c *config) {
		c.docs = m
	}
}

func WithRootCache(rc cacheapi.ICache[string, string]) Option {
	return func(c *config) {
		c.rootCache = rc
	}
}

func WithHostPolicy(p trust.IHostPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

func WithClientOptions(o *pluginconfig.Options) Option {
	return func(c *config) {
		c.clientOptions = o
	}
}

// WithSessionMaxAge sets the session cookie lifetime in seconds.
func WithSessionMaxAge(sec int) Option {
	return func(c *config) {
		c.sessionMaxAge = sec
	}
}

func WithMaxBodySize(sz int64) Option {
	return func(c *config) {
		c.maxBodySize = sz
	}
}

func applyOpts(opts ...Option) *config {
	c := &config{
		sessionMaxAge: defaultSessionMaxAge,
		maxBodySize:   defaultMaxBodySize,
		policy:        trust.NewHostPolicy(false),
		clientOptions: &pluginconfig.Options{AutosaveInterval: 5},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
