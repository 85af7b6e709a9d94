package cluster

import (
	"context"

	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
)

// CollectionRepository provisions indices and their metadata.
type CollectionRepository interface {
	Create(ctx context.Context, col *domcol.Collection, d *doctype.Descriptor) error
	Alias(ctx context.Context, alias, index string) error
	Get(ctx context.Context, name string) (*domcol.Collection, error)
	GetMulti(ctx context.Context, names []string) ([]*domcol.Collection, error)
	ListNames(ctx context.Context, prefix string) ([]string, error)
	SaveSchema(ctx context.Context, name string, s *schema.Schema) error
	Delete(ctx context.Context, name string) error
}

// DocumentRepository writes, removes and reads documents.
type DocumentRepository interface {
	Put(ctx context.Context, docs []domain.Document) ([]domain.ItemError, error)
	Delete(ctx context.Context, index string, ids []string) ([]domain.ItemError, error)
	Get(ctx context.Context, index, id string) ([]byte, error)
}

// SearchRepository runs one structured request against one index.
type SearchRepository interface {
	Search(ctx context.Context, index string, req *request.Request) (*result.Results, error)
}

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TypeRegistry supplies document type descriptors and path resolution.
type TypeRegistry interface {
	Lookup(name string) (*doctype.Descriptor, bool)
	For(typeName string) (*doctype.Bound, error)
	Canonical(typeName, path string) string
}
