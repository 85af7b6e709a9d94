package sqee

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
)

// Querier runs criteria across indices.
type Querier interface {
	Query(ctx context.Context, criteria request.Criteria) (*result.Results, error)
}

// Finder is a Querier that also resolves document types by collection.
// *Cluster satisfies it.
type Finder interface {
	Querier
	Resolver(name string) (*doctype.Bound, error)
}

// QueryBuilder is a fluent builder for simple and advanced criteria.
// Free text yields simple criteria; Where clauses yield advanced criteria.
type QueryBuilder struct {
	indices      []string
	text         string
	searchFields []string
	filters      []request.FilterField
	sorts        []request.SortField
	skip         *int
	take         *int
	returnFields []string
	returnSet    bool
	buckets      []string
	bucketSize   int
	resolver     request.Resolver
}

// NewQuery starts a query over the given indices.
func NewQuery(indices ...string) *QueryBuilder {
	return &QueryBuilder{indices: append([]string(nil), indices...)}
}

// Text sets the free-text query, optionally limited to fields.
func (b *QueryBuilder) Text(text string, fields ...string) *QueryBuilder {
	b.text = text
	b.searchFields = append(b.searchFields, fields...)
	return b
}

// Where adds a filter comparing field against value.
func (b *QueryBuilder) Where(field string, c Comparator, value string) *QueryBuilder {
	b.filters = append(b.filters, request.FilterField{Field: field, Comparator: c, Value: value})
	return b
}

// Between adds an inclusive range filter on field.
func (b *QueryBuilder) Between(field string, low, high float64) *QueryBuilder {
	value := strconv.FormatFloat(low, 'f', -1, 64) + domain.TextPartSeparator +
		strconv.FormatFloat(high, 'f', -1, 64)
	return b.Where(field, Between, value)
}

// SortBy appends a sort key; keys apply in the order they are added.
func (b *QueryBuilder) SortBy(field string, ascending bool) *QueryBuilder {
	b.sorts = append(b.sorts, request.SortField{Field: field, Ascending: ascending, Ordinal: len(b.sorts)})
	return b
}

// Skip sets the offset of the first hit.
func (b *QueryBuilder) Skip(n int) *QueryBuilder {
	b.skip = &n
	return b
}

// Take sets the page size. Zero returns only totals and buckets.
func (b *QueryBuilder) Take(n int) *QueryBuilder {
	b.take = &n
	return b
}

// Return restricts hit sources to fields. With no fields, hits carry no source.
func (b *QueryBuilder) Return(fields ...string) *QueryBuilder {
	b.returnFields = append(b.returnFields, fields...)
	b.returnSet = true
	return b
}

// Buckets requests value counts for fields.
func (b *QueryBuilder) Buckets(fields ...string) *QueryBuilder {
	b.buckets = append(b.buckets, fields...)
	return b
}

// BucketSize caps the values returned per bucket.
func (b *QueryBuilder) BucketSize(n int) *QueryBuilder {
	b.bucketSize = n
	return b
}

// ResolveWith resolves property paths against a document type.
func (b *QueryBuilder) ResolveWith(r request.Resolver) *QueryBuilder {
	b.resolver = r
	return b
}

// Criteria validates the builder and returns simple or advanced criteria.
func (b *QueryBuilder) Criteria() (Criteria, error) {
	if b.text != "" && len(b.filters) > 0 {
		return nil, domain.Validationf("free text and filters cannot be combined")
	}

	var opts []request.Option
	if b.skip != nil {
		opts = append(opts, request.WithSkip(*b.skip))
	}
	if b.take != nil {
		opts = append(opts, request.WithTake(*b.take))
	}
	if len(b.sorts) > 0 {
		opts = append(opts, request.WithSort(b.sorts...))
	}
	if b.returnSet {
		opts = append(opts, request.WithReturnFields(b.returnFields...))
	}
	if len(b.buckets) > 0 {
		opts = append(opts, request.WithBuckets(b.buckets...))
	}
	if b.bucketSize != 0 {
		opts = append(opts, request.WithBucketSize(b.bucketSize))
	}
	if b.resolver != nil {
		opts = append(opts, request.WithResolver(b.resolver))
	}

	if len(b.filters) > 0 {
		opts = append(opts, request.WithFilters(b.filters...))
		adv, err := request.NewAdvanced(b.indices, opts...)
		if err != nil {
			return nil, err
		}
		return adv, nil
	}
	if len(b.searchFields) > 0 {
		opts = append(opts, request.WithSearchFields(b.searchFields...))
	}
	simple, err := request.NewSimple(b.text, b.indices, opts...)
	if err != nil {
		return nil, err
	}
	return simple, nil
}

// Query runs criteria and decodes every hit source into T.
func Query[T any](ctx context.Context, q Querier, criteria Criteria) ([]T, *Results, error) {
	res, err := q.Query(ctx, criteria)
	if err != nil {
		return nil, nil, err
	}
	items, err := result.Decode[T](codec.Default, res)
	if err != nil {
		return nil, res, fmt.Errorf("query: %w", err)
	}
	return items, res, nil
}

// Find builds b and runs it like Query. Without an explicit resolver, paths
// resolve against the document type of the first registered index.
func Find[T any](ctx context.Context, f Finder, b *QueryBuilder) ([]T, *Results, error) {
	if b.resolver == nil {
		for _, idx := range b.indices {
			if bound, err := f.Resolver(idx); err == nil {
				b = b.clone().ResolveWith(bound)
				break
			}
		}
	}
	criteria, err := b.Criteria()
	if err != nil {
		return nil, nil, err
	}
	return Query[T](ctx, f, criteria)
}

func (b *QueryBuilder) clone() *QueryBuilder {
	c := *b
	c.indices = append([]string(nil), b.indices...)
	c.searchFields = append([]string(nil), b.searchFields...)
	c.filters = append([]request.FilterField(nil), b.filters...)
	c.sorts = append([]request.SortField(nil), b.sorts...)
	c.returnFields = append([]string(nil), b.returnFields...)
	c.buckets = append([]string(nil), b.buckets...)
	return &c
}
