package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

// store is the consumer interface for collections (ISP).
//
//nolint:interfacebloat // collection repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
	AliasAdd(ctx context.Context, alias, index string) error
}

// Repo persists collections as one FT index plus one metadata hash each.
type Repo struct {
	store store
	codec codec.Codec
}

// New creates a collection repository. A nil codec selects codec.Default.
func New(s store, c codec.Codec) *Repo {
	if c == nil {
		c = codec.Default
	}
	return &Repo{store: s, codec: c}
}

// Create stores a collection: HSET metadata then FT.CREATE index.
// On FT.CREATE failure, rolls back the HSET via DEL. The schema is part of the
// metadata only when the collection persists it eagerly.
func (r *Repo) Create(ctx context.Context, col *domcol.Collection, d *doctype.Descriptor) error {
	name := col.Name()

	// Prepare index definition and hash data before writes
	def, err := buildIndex(col, d)
	if err != nil {
		return err
	}
	hashData, err := collectionToHash(r.codec, col, col.EagerlyPersistSchema())
	if err != nil {
		return err
	}

	key := metaKey(name)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return domain.NewBackendError(db.OpExists, err)
	}
	if exists {
		return fmt.Errorf("collection %s: %w", name, domain.ErrAlreadyExists)
	}

	if err := r.store.HSet(ctx, key, hashData); err != nil {
		return domain.NewBackendError(db.OpHSet, err)
	}

	// FT.CREATE, rolling back the HSET on error
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			err = fmt.Errorf("index %s: %w", name, domain.ErrAlreadyExists)
		} else {
			err = domain.NewBackendError(db.OpCreateIndex, err)
		}
		return errors.Join(err, r.store.Del(ctx, key))
	}

	return nil
}

// Alias points alias at index. An alias already in use yields domain.ErrAlreadyExists.
func (r *Repo) Alias(ctx context.Context, alias, index string) error {
	if err := r.store.AliasAdd(ctx, alias, index); err != nil {
		if errors.Is(err, db.ErrAliasExists) {
			return fmt.Errorf("alias %s: %w", alias, domain.ErrAlreadyExists)
		}
		return domain.NewBackendError(db.OpAliasAdd, err)
	}
	return nil
}

// Get loads a collection by index name. An index without metadata yields a
// collection whose schema is not persisted.
func (r *Repo) Get(ctx context.Context, name string) (*domcol.Collection, error) {
	m, err := r.store.HGetAll(ctx, metaKey(name))
	if err != nil {
		return nil, domain.NewBackendError(db.OpHGetAll, err)
	}
	if len(m) > 0 {
		return collectionFromHash(r.codec, name, m)
	}

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return nil, domain.NewBackendError(db.OpIndexInfo, err)
	}
	if !exists {
		return nil, domain.NotFoundf("collection %s", name)
	}
	return domcol.Reconstruct(name, "", domcol.DefaultSettings(), nil), nil
}

// GetMulti loads the metadata of existing indices in one round-trip.
func (r *Repo) GetMulti(ctx context.Context, names []string) ([]*domcol.Collection, error) {
	if len(names) == 0 {
		return nil, nil
	}

	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = metaKey(n)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, domain.NewBackendError(db.OpHGetAll, err)
	}

	out := make([]*domcol.Collection, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			out = append(out, domcol.Reconstruct(names[i], "", domcol.DefaultSettings(), nil))
			continue
		}
		col, err := collectionFromHash(r.codec, names[i], m)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// ListNames returns the live index names starting with prefix.
func (r *Repo) ListNames(ctx context.Context, prefix string) ([]string, error) {
	all, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, domain.NewBackendError(db.OpListIndexes, err)
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	return names, nil
}

// SaveSchema replaces the persisted schema of a collection wholesale.
func (r *Repo) SaveSchema(ctx context.Context, name string, s *schema.Schema) error {
	raw, err := encodeSchema(r.codec, s)
	if err != nil {
		return err
	}
	fields := map[string]string{
		hashName:             name,
		domain.SchemaMetaKey: raw,
	}
	if s.DocumentType() != "" {
		fields[hashDocumentType] = s.DocumentType()
	}
	if err := r.store.HSet(ctx, metaKey(name), fields); err != nil {
		return domain.NewBackendError(db.OpHSet, err)
	}
	return nil
}

// Delete drops the index with its documents, then the metadata hash.
// A missing index still clears the metadata and reports domain.ErrNotFound.
func (r *Repo) Delete(ctx context.Context, name string) error {
	dropErr := r.store.DropIndex(ctx, name, true)
	if dropErr != nil && !errors.Is(dropErr, db.ErrIndexNotFound) {
		return domain.NewBackendError(db.OpDropIndex, dropErr)
	}

	if err := r.store.Del(ctx, metaKey(name)); err != nil {
		return domain.NewBackendError(db.OpDel, err)
	}

	if dropErr != nil {
		return domain.NotFoundf("index %s", name)
	}
	return nil
}

// Keys: sqee:meta:{index} for metadata, {index}:{id} for documents.

func metaKey(name string) string {
	return domain.KeyPrefix + "meta:" + name
}
