package health

import "context"

// Pinger checks backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexLister proves the search module answers, not just the connection.
type IndexLister interface {
	ScopedCollectionNames(ctx context.Context) ([]string, error)
}
