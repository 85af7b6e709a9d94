// Package db declares the storage contracts the repositories depend on.
// The only implementation lives in db/redis and targets Redis 8+ with the
// search and JSON modules loaded.
package db

import (
	"context"
	"time"
)

// Store is everything the redis package offers. Repositories accept the
// narrow interfaces below and never this one.
//
//nolint:interfacebloat // union of the narrow interfaces
type Store interface {
	Lifecycle
	MetaStore
	DocumentStore
	IndexManager
	Searcher
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lifecycle covers connection readiness and shutdown.
type Lifecycle interface {
	Pinger
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// MetaStore keeps collection metadata in one hash per index.
// A missing hash reads as an empty map, never as ErrKeyNotFound.
type MetaStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// JSONSetItem is one document write: the JSON payload stored at Path under Key.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
}

// DocumentStore writes, reads and deletes JSON documents.
// Batch calls return per-item errors aligned with the input; the error
// return is reserved for failures of the whole round-trip.
type DocumentStore interface {
	JSONSetMulti(ctx context.Context, items []JSONSetItem) ([]error, error)
	DelMulti(ctx context.Context, keys []string) ([]error, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// IndexManager handles the FT index and alias lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
	AliasAdd(ctx context.Context, alias, index string) error
}

// Searcher runs queries against a single index. Fan-out across indices is
// the caller's job.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
	Aggregate(ctx context.Context, q *AggregateQuery) ([]AggregateRow, error)
}
