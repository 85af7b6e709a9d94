package request

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/comparator"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
)

// Criteria builds a structured request; Request is pure and repeatable.
type Criteria interface {
	Indices() []string
	Request() (*Request, error)
}

// Bindable criteria can be bound to a document type after construction.
type Bindable interface {
	Criteria
	Resolved() bool
	Bind(r Resolver) Criteria
}

// Resolver resolves dotted paths of the queried document type.
type Resolver interface {
	Resolve(path string) (doctype.Resolution, bool)
}

// SortField orders results by Field; lower Ordinal sorts first.
type SortField struct {
	Field     string
	Ascending bool
	Ordinal   int
}

// FilterField restricts results by comparing Field against Value.
type FilterField struct {
	Comparator comparator.Comparator
	Value      string
	Field      string
}

type common struct {
	indices      []string
	skip         *int
	take         *int
	sort         []SortField
	returnFields []string
	returnSet    bool
	buckets      []string
	bucketSize   int
	resolver     Resolver
	searchFields []string
	filters      []FilterField
}

// Option configures criteria.
type Option func(*common)

// WithSkip sets the page offset.
func WithSkip(n int) Option { return func(c *common) { c.skip = &n } }

// WithTake sets the page size; zero returns buckets only.
func WithTake(n int) Option { return func(c *common) { c.take = &n } }

// WithSort appends sort fields.
func WithSort(fields ...SortField) Option {
	return func(c *common) { c.sort = append(c.sort, fields...) }
}

// WithReturnFields restricts the response to names. Calling it with no
// names still restricts, to no fields at all.
func WithReturnFields(names ...string) Option {
	return func(c *common) {
		c.returnFields = append(c.returnFields, names...)
		c.returnSet = true
	}
}

// WithBuckets requests one aggregation per field.
func WithBuckets(names ...string) Option {
	return func(c *common) { c.buckets = append(c.buckets, names...) }
}

// WithBucketSize caps the values returned per bucket.
func WithBucketSize(n int) Option { return func(c *common) { c.bucketSize = n } }

// WithResolver resolves field names through a document type.
func WithResolver(r Resolver) Option { return func(c *common) { c.resolver = r } }

// WithSearchFields limits simple free text to the given fields.
func WithSearchFields(names ...string) Option {
	return func(c *common) { c.searchFields = append(c.searchFields, names...) }
}

// WithFilters appends filter fields (advanced criteria only).
func WithFilters(filters ...FilterField) Option {
	return func(c *common) { c.filters = append(c.filters, filters...) }
}

func newCommon(indices []string, opts []Option) (common, error) {
	c := common{indices: append([]string(nil), indices...), bucketSize: DefaultBucketSize}
	for _, o := range opts {
		o(&c)
	}
	if len(c.indices) == 0 {
		return common{}, domain.Validationf("at least one index is required")
	}
	for _, idx := range c.indices {
		if strings.TrimSpace(idx) == "" {
			return common{}, domain.Validationf("index name must not be empty")
		}
	}
	if c.skip != nil && *c.skip < 0 {
		return common{}, domain.Validationf("skip must not be negative")
	}
	if c.take != nil && *c.take < 0 {
		return common{}, domain.Validationf("take must not be negative")
	}
	if c.bucketSize <= 0 {
		return common{}, domain.Validationf("bucket size must be positive")
	}
	for _, s := range c.sort {
		if s.Field == "" {
			return common{}, domain.Validationf("sort field name is required")
		}
	}
	for _, b := range c.buckets {
		if b == "" {
			return common{}, domain.Validationf("bucket field name is required")
		}
	}
	return c, nil
}

// Indices returns the targeted index names.
func (c *common) Indices() []string { return append([]string(nil), c.indices...) }

// Skip returns the effective offset.
func (c *common) Skip() int {
	if c.skip == nil {
		return DefaultSkip
	}
	return *c.skip
}

// Take returns the effective page size.
func (c *common) Take() int {
	if c.take == nil {
		return DefaultTake
	}
	return *c.take
}

// Resolved reports whether field names resolve through a document type.
func (c *common) Resolved() bool { return c.resolver != nil }

func (c *common) resolve(name string) (doctype.Resolution, bool) {
	if c.resolver == nil {
		return doctype.Resolution{}, false
	}
	return c.resolver.Resolve(name)
}

func (c *common) base(query filter.Clause) *Request {
	return &Request{
		Indices:      c.Indices(),
		Query:        query,
		Offset:       c.Skip(),
		Limit:        c.Take(),
		Sort:         c.sortKeys(),
		Source:       c.source(),
		Aggregations: c.aggregations(),
	}
}

func (c *common) sortKeys() []SortKey {
	if len(c.sort) == 0 {
		return nil
	}
	ordered := append([]SortField(nil), c.sort...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	keys := make([]SortKey, 0, len(ordered))
	for _, s := range ordered {
		name := s.Field
		if res, ok := c.resolve(s.Field); ok {
			name = doctype.SortName(res)
		}
		keys = append(keys, SortKey{Field: name, Ascending: s.Ascending})
	}
	return keys
}

func (c *common) source() Source {
	if !c.returnSet {
		return Source{}
	}
	fields := make([]ReturnField, 0, len(c.returnFields))
	for _, n := range c.returnFields {
		if res, ok := c.resolve(n); ok {
			fields = append(fields, ReturnField{
				Name:  res.Path,
				Path:  res.JSONPath,
				Kind:  res.Kind,
				Array: strings.Contains(res.IndexPath, "[*]"),
			})
			continue
		}
		plain, _ := doctype.StripSuffix(n)
		fields = append(fields, ReturnField{Name: plain, Path: "$." + plain})
	}
	return Source{Restricted: true, Fields: fields}
}

func (c *common) aggregations() []Aggregation {
	if len(c.buckets) == 0 {
		return nil
	}
	aggs := make([]Aggregation, 0, len(c.buckets))
	for _, b := range c.buckets {
		target := b
		if res, ok := c.resolve(b); ok {
			if _, suffix := doctype.StripSuffix(b); suffix != "" {
				target = res.Path + "." + suffix
			} else {
				target = doctype.KeywordName(res)
			}
		}
		aggs = append(aggs, Aggregation{Name: b, Field: target, Size: c.bucketSize})
	}
	return aggs
}
