package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.AggregateRow, error)
}

// Repo runs structured requests against a single index.
type Repo struct {
	store store
	codec codec.Codec
}

// New creates a search repository. A nil codec selects codec.Default.
func New(s store, c codec.Codec) *Repo {
	if c == nil {
		c = codec.Default
	}
	return &Repo{store: s, codec: c}
}

// Search executes req on index. Buckets, when requested, run concurrently
// with the document page.
func (r *Repo) Search(ctx context.Context, index string, req *request.Request) (*result.Results, error) {
	start := time.Now()
	out := &result.Results{}

	if !req.HasAggregations() {
		if err := r.page(ctx, index, req, out); err != nil {
			return nil, err
		}
		out.Took = time.Since(start)
		return out, nil
	}

	out.Buckets = make([]result.Bucket, len(req.Aggregations))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.page(gctx, index, req, out)
	})
	for i, agg := range req.Aggregations {
		g.Go(func() error {
			rows, err := r.store.Aggregate(gctx, &db.AggregateQuery{
				IndexName: index,
				Query:     req.Query,
				GroupBy:   agg.Field,
				Limit:     agg.Size,
			})
			if err != nil {
				return storeErr(db.OpAggregate, index, err)
			}
			values := make([]result.BucketValue, len(rows))
			for j, row := range rows {
				values[j] = result.BucketValue{Key: row.Value, Count: row.Count}
			}
			out.Buckets[i] = result.Bucket{Name: agg.Name, Values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Took = time.Since(start)
	return out, nil
}

// page fills the total and hits of out.
func (r *Repo) page(ctx context.Context, index string, req *request.Request, out *result.Results) error {
	sr, err := r.store.Search(ctx, searchQuery(index, req))
	if err != nil {
		return storeErr(db.OpSearch, index, err)
	}
	hits, err := r.hits(index, sr, req.Source)
	if err != nil {
		return err
	}
	out.Total = int64(sr.Total)
	out.Hits = hits
	return nil
}

func searchQuery(index string, req *request.Request) *db.SearchQuery {
	q := &db.SearchQuery{
		IndexName:        index,
		Query:            req.Query,
		Offset:           req.Offset,
		Limit:            req.Limit,
		ReturnRestricted: req.Source.Restricted,
		WithSortValues:   req.SortValues,
	}
	for _, s := range req.Sort {
		q.Sort = append(q.Sort, db.SortKey{Field: s.Field, Ascending: s.Ascending})
	}
	for _, f := range req.Source.Fields {
		q.Return = append(q.Return, db.ReturnField{Name: f.Name, Path: f.Path})
	}
	return q
}

func (r *Repo) hits(index string, sr *db.SearchResult, src request.Source) ([]result.Hit, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}
	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		_, id := db.SplitDocumentKey(e.Key)
		source, err := r.source(id, e.Fields, src)
		if err != nil {
			return nil, fmt.Errorf("hit %s: %w", e.Key, err)
		}
		hits = append(hits, result.Hit{Index: index, ID: id, Source: source, SortValues: e.SortValues})
	}
	return hits, nil
}

// source returns the stored document, or rebuilds a nested object from the
// returned fields of a restricted request.
func (r *Repo) source(id string, fields map[string]string, src request.Source) ([]byte, error) {
	if !src.Restricted {
		if doc, ok := fields["$"]; ok && doc != "" {
			return []byte(doc), nil
		}
	}

	obj := map[string]any{}
	for _, f := range src.Fields {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		setPath(obj, f.Name, jsonValue(v, f))
	}
	if _, ok := obj[domain.FieldID]; !ok {
		obj[domain.FieldID] = id
	}
	return r.codec.Marshal(obj)
}

// setPath assigns v at a dotted path, creating intermediate objects.
func setPath(obj map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := obj
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// jsonValue types a returned value by its field: numbers and booleans only
// for numeric and boolean fields, raw JSON only for arrays, objects and
// fields of unknown kind that hold a container. Everything else is a string.
func jsonValue(s string, f request.ReturnField) any {
	if s == "" {
		return s
	}
	if f.Array || f.Kind == doctype.Object || f.Kind == "" {
		if (s[0] == '[' || s[0] == '{') && codec.Valid([]byte(s)) {
			return gojson.RawMessage(s)
		}
	}
	switch f.Kind {
	case doctype.Numeric:
		if _, err := strconv.ParseFloat(s, 64); err == nil && codec.Valid([]byte(s)) {
			return gojson.RawMessage(s)
		}
	case doctype.Boolean:
		if s == "true" || s == "false" {
			return s == "true"
		}
	}
	return s
}

func storeErr(op, index string, err error) error {
	if errors.Is(err, db.ErrIndexNotFound) {
		return domain.NotFoundf("index %s", index)
	}
	// the store names the command that actually ran
	if actual, ok := db.OpOf(err); ok {
		op = actual
	}
	return domain.NewBackendError(op, err)
}
