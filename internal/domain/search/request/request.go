package request

import (
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
)

// Paging and size defaults.
const (
	// MaxQueryLength is the maximum allowed free-text length.
	MaxQueryLength    = 4096
	DefaultSkip       = 0
	DefaultTake       = 10
	DefaultBucketSize = 10
)

// SortKey is a resolved sort instruction.
type SortKey struct {
	Field     string
	Ascending bool
}

// ReturnField is a resolved field of the response source. Kind is empty
// when the name did not resolve against the document type.
type ReturnField struct {
	Name  string
	Path  string
	Kind  doctype.Kind
	Array bool
}

// Source selects the fields returned with each hit.
type Source struct {
	// Restricted limits the response to Fields, even when Fields is empty.
	Restricted bool
	Fields     []ReturnField
}

// Aggregation counts hits per distinct value of Field, keyed by Name.
type Aggregation struct {
	Name  string
	Field string
	Size  int
}

// Request is one structured search request, backend neutral.
type Request struct {
	Indices      []string
	Query        filter.Clause
	Offset       int
	Limit        int
	Sort         []SortKey
	// SortValues asks for the sort key values of every hit.
	SortValues   bool
	Source       Source
	Aggregations []Aggregation
}

// HasAggregations reports whether buckets were requested.
func (r *Request) HasAggregations() bool { return len(r.Aggregations) > 0 }

// Ascending lists the direction of every sort key.
func (r *Request) Ascending() []bool {
	out := make([]bool, len(r.Sort))
	for i, k := range r.Sort {
		out[i] = k.Ascending
	}
	return out
}

// Window is the per-index request of a multi-index query: it fetches the
// first Offset+Limit hits with their sort values, so that the page is cut
// after the indices are merged.
func (r *Request) Window() *Request {
	w := *r
	w.Offset = 0
	if r.Limit > 0 {
		w.Limit = r.Offset + r.Limit
	}
	w.SortValues = len(r.Sort) > 0
	return &w
}
