package document

import (
	"context"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) ([]error, error)
	DelMulti(ctx context.Context, keys []string) ([]error, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// Repo stores documents as JSON values keyed {index}:{id}.
type Repo struct {
	store store
	codec codec.Codec
}

// New creates a document repository. A nil codec selects codec.Default.
func New(s store, c codec.Codec) *Repo {
	if c == nil {
		c = codec.Default
	}
	return &Repo{store: s, codec: c}
}

// Encode serializes a document; the result must be a JSON object.
func (r *Repo) Encode(doc domain.Document) ([]byte, error) {
	data, err := r.codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", doc.DocumentID(), err)
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, domain.Validationf("document %s is not a JSON object", doc.DocumentID())
	}
	return data, nil
}

// Put writes all documents in one round-trip. Documents that fail to encode or
// are rejected by the server come back as item errors; a failed round-trip is
// a call-level error.
func (r *Repo) Put(ctx context.Context, docs []domain.Document) ([]domain.ItemError, error) {
	var itemErrs []domain.ItemError
	items := make([]db.JSONSetItem, 0, len(docs))
	sent := make([]domain.Document, 0, len(docs))

	for _, doc := range docs {
		data, err := r.Encode(doc)
		if err != nil {
			itemErrs = append(itemErrs, itemError(doc.DocumentCollectionID(), doc.DocumentID(), err))
			continue
		}
		items = append(items, db.JSONSetItem{
			Key:  db.DocumentKey(doc.DocumentCollectionID(), doc.DocumentID()),
			Path: "$",
			Data: data,
		})
		sent = append(sent, doc)
	}
	if len(items) == 0 {
		return itemErrs, nil
	}

	errs, err := r.store.JSONSetMulti(ctx, items)
	if err != nil {
		return nil, domain.NewBackendError(db.OpJSONSet, err)
	}
	for i, e := range errs {
		if e != nil {
			itemErrs = append(itemErrs, itemError(sent[i].DocumentCollectionID(), sent[i].DocumentID(), e))
		}
	}
	return itemErrs, nil
}

// Delete removes documents of one index by id in one round-trip.
// Ids that do not exist are not errors.
func (r *Repo) Delete(ctx context.Context, index string, ids []string) ([]domain.ItemError, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = db.DocumentKey(index, id)
	}

	errs, err := r.store.DelMulti(ctx, keys)
	if err != nil {
		return nil, domain.NewBackendError(db.OpDel, err)
	}
	var itemErrs []domain.ItemError
	for i, e := range errs {
		if e != nil {
			itemErrs = append(itemErrs, itemError(index, ids[i], e))
		}
	}
	return itemErrs, nil
}

// Get returns the stored JSON of one document.
func (r *Repo) Get(ctx context.Context, index, id string) ([]byte, error) {
	raw, err := r.store.JSONGet(ctx, db.DocumentKey(index, id), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.NotFoundf("document %s/%s", index, id)
		}
		return nil, domain.NewBackendError(db.OpJSONGet, err)
	}

	// JSON.GET with a JSONPath wraps matches in an array.
	var matches []gojson.RawMessage
	if err := r.codec.Unmarshal(raw, &matches); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", index, id, err)
	}
	if len(matches) == 0 {
		return nil, domain.NotFoundf("document %s/%s", index, id)
	}
	return matches[0], nil
}

func itemError(collection, id string, err error) domain.ItemError {
	return domain.ItemError{Collection: collection, DocumentID: id, Reason: err.Error()}
}
