package db

import "github.com/kailas-cloud/sqee/internal/domain/search/filter"

// SortKey orders search results by a field.
type SortKey struct {
	Field     string
	Ascending bool
}

// ReturnField projects a JSON path into the result under Name.
type ReturnField struct {
	Name string
	Path string
}

// SearchQuery is the input for a paged FT.SEARCH.
type SearchQuery struct {
	IndexName string
	Query     filter.Clause
	Offset    int
	Limit     int
	Sort      []SortKey
	// ReturnRestricted limits fields to Return, even when Return is empty.
	ReturnRestricted bool
	Return           []ReturnField
	// WithSortValues fills SearchEntry.SortValues.
	WithSortValues bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Unrestricted JSON hits carry the whole document under "$".
type SearchEntry struct {
	Key    string
	Fields map[string]string
	// SortValues holds one value per sort key, "" when the document has none.
	SortValues []string
}

// AggregateQuery groups matching documents by one field and counts them.
type AggregateQuery struct {
	IndexName string
	Query     filter.Clause
	GroupBy   string
	Limit     int
}

// AggregateRow is one group of an aggregation.
type AggregateRow struct {
	Value string
	Count int64
}
