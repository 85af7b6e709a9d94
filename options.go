package sqee

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs      []string
	username   string
	password   string
	db         int
	standalone bool

	readinessTimeout time.Duration
	cacheSize        int
	types            []*Descriptor

	logger  *zap.Logger
	metrics bool
}

// WithRedis configures the client to connect to a single Redis address.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithAddrs sets the seed addresses of a Redis cluster.
func WithAddrs(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = append([]string(nil), addrs...)
	})
}

// WithCredentials sets ACL username and password.
func WithCredentials(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.username = username
		c.password = password
	})
}

// WithDB selects the logical database (standalone only).
func WithDB(db int) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = db
	})
}

// WithStandalone disables cluster topology discovery.
func WithStandalone() Option {
	return optionFunc(func(c *clientConfig) {
		c.standalone = true
	})
}

// WithReadinessTimeout bounds how long New waits for the backend.
// Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessTimeout = d
	})
}

// WithCacheSize sets the size of the path resolution cache.
func WithCacheSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = n
	})
}

// WithDocumentTypes registers document type descriptors at construction.
func WithDocumentTypes(types ...*Descriptor) Option {
	return optionFunc(func(c *clientConfig) {
		c.types = append(c.types, types...)
	})
}

// WithLogger enables structured logging for registry operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithMetrics registers registry metrics on the default Prometheus registerer.
func WithMetrics() Option {
	return optionFunc(func(c *clientConfig) {
		c.metrics = true
	})
}
