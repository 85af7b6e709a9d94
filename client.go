package sqee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sqee/internal/codec"
	dbRedis "github.com/kailas-cloud/sqee/internal/db/redis"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/metrics"
	collectionrepo "github.com/kailas-cloud/sqee/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/sqee/internal/repository/document"
	searchrepo "github.com/kailas-cloud/sqee/internal/repository/search"
	"github.com/kailas-cloud/sqee/internal/usecase/cluster"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the sqee entry point. It owns the backend connection and the
// document type registry shared by every Cluster it opens.
type Client struct {
	store       *dbRedis.Store
	types       *doctype.Registry
	collections *collectionrepo.Repo
	documents   *documentrepo.Repo
	search      *searchrepo.Repo
	logger      *zap.Logger
}

// New creates a Client and connects to the backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{readinessTimeout: defaultReadinessTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("sqee: database address required (use WithRedis or WithAddrs)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.addrs,
		Username:   cfg.username,
		Password:   cfg.password,
		DB:         cfg.db,
		Standalone: cfg.standalone,
	})
	if err != nil {
		return nil, fmt.Errorf("sqee: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("sqee: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store *dbRedis.Store, cfg *clientConfig) (*Client, error) {
	types, err := doctype.NewRegistry(cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("sqee: %w", err)
	}
	for _, d := range cfg.types {
		if err := types.Register(d); err != nil {
			return nil, fmt.Errorf("sqee: register %q: %w", d.Name, err)
		}
	}
	if cfg.metrics {
		metrics.RegisterClusterMetrics()
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		store:       store,
		types:       types,
		collections: collectionrepo.New(store, codec.Default),
		documents:   documentrepo.New(store, codec.Default),
		search:      searchrepo.New(store, codec.Default),
		logger:      logger,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// RegisterType adds a document type descriptor.
func (c *Client) RegisterType(d *Descriptor) error {
	if err := c.types.Register(d); err != nil {
		return fmt.Errorf("register type: %w", err)
	}
	return nil
}

// Types lists the registered document type names.
func (c *Client) Types() []string {
	return c.types.Names()
}

// Cluster opens the collection registry of scope, reconciling it with the
// indices already on the backend. An empty scope generates a fresh one.
func (c *Client) Cluster(ctx context.Context, scope string) (*Cluster, error) {
	if scope == "" {
		scope = cluster.NewScopeID()
	}
	cl, err := cluster.New(ctx, scope, cluster.Deps{
		Collections: c.collections,
		Documents:   c.documents,
		Search:      c.search,
		Pinger:      c.store,
		Types:       c.types,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open cluster %q: %w", scope, err)
	}
	return cl, nil
}

// Register describes T and registers it under name.
func Register[T any](c *Client, name string) (*Descriptor, error) {
	d, err := Describe[T](name)
	if err != nil {
		return nil, err
	}
	if err := c.RegisterType(d); err != nil {
		return nil, err
	}
	return d, nil
}
