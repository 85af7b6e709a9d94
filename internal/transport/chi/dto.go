package chi

import (
	gojson "github.com/goccy/go-json"

	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
)

// ErrorCode is the machine-readable error kind of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeAlreadyExists    ErrorCode = "already_exists"
	ErrorCodeDuplicateField   ErrorCode = "duplicate_field"
	ErrorCodeBackendError     ErrorCode = "backend_error"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FieldDefinition is one node of a collection field tree.
type FieldDefinition struct {
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	Boost            *float64          `json:"boost,omitempty"`
	IsFilterable     *bool             `json:"isFilterable,omitempty"`
	IncludeInResults *bool             `json:"includeInResults,omitempty"`
	Label            string            `json:"label,omitempty"`
	Fields           []FieldDefinition `json:"fields,omitempty"`
}

// CreateCollectionRequest is the body of POST /collections.
type CreateCollectionRequest struct {
	Name                         string            `json:"name"`
	DocumentType                 string            `json:"documentType"`
	PrimaryShards                *int              `json:"primaryShards,omitempty"`
	ReplicaShards                *int              `json:"replicaShards,omitempty"`
	ForceRefreshOnDocumentCommit *bool             `json:"forceRefreshOnDocumentCommit,omitempty"`
	EagerlyPersistSchema         *bool             `json:"eagerlyPersistSchema,omitempty"`
	Fields                       []FieldDefinition `json:"fields,omitempty"`
}

// CollectionResponse describes a registered collection.
type CollectionResponse struct {
	Name                         string            `json:"name"`
	DocumentType                 string            `json:"documentType"`
	PrimaryShards                int               `json:"primaryShards"`
	ReplicaShards                int               `json:"replicaShards"`
	ForceRefreshOnDocumentCommit bool              `json:"forceRefreshOnDocumentCommit"`
	EagerlyPersistSchema         bool              `json:"eagerlyPersistSchema"`
	SchemaPersisted              bool              `json:"schemaPersisted"`
	Fields                       []FieldDefinition `json:"fields"`
}

// CreateCollectionResponse reports the provisioning outcome.
type CreateCollectionResponse struct {
	Outcome    string             `json:"outcome"`
	Collection CollectionResponse `json:"collection"`
}

// CollectionListResponse is the body of GET /collections.
type CollectionListResponse struct {
	Items []CollectionResponse `json:"items"`
}

// UpdateSchemaRequest is the body of PUT /collections/{name}/schema.
type UpdateSchemaRequest struct {
	Fields []FieldDefinition `json:"fields"`
}

// CommitRequest is the body of POST /documents. Every document carries its
// own id and collectionId.
type CommitRequest struct {
	Documents []gojson.RawMessage `json:"documents"`
}

// DeleteDocumentsRequest is the body of POST /collections/{name}/documents/delete.
type DeleteDocumentsRequest struct {
	IDs []string `json:"ids"`
}

// BulkResponse reports a bulk commit or delete.
type BulkResponse struct {
	Succeeded bool               `json:"succeeded"`
	Processed int                `json:"processed"`
	Errors    []domain.ItemError `json:"errors,omitempty"`
}

// SortDefinition orders query results.
type SortDefinition struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
	Ordinal   int    `json:"ordinal"`
}

// FilterDefinition is one advanced filter; Comparator is a comparator value
// such as "eq" or "between".
type FilterDefinition struct {
	Field      string `json:"field"`
	Comparator string `json:"comparator"`
	Value      string `json:"value"`
}

// QueryRequest holds the options shared by simple and advanced queries.
// A present but empty returnFields restricts the response to the reserved fields.
type QueryRequest struct {
	Indices      []string         `json:"indices"`
	Skip         *int             `json:"skip,omitempty"`
	Take         *int             `json:"take,omitempty"`
	Sort         []SortDefinition `json:"sort,omitempty"`
	ReturnFields *[]string        `json:"returnFields,omitempty"`
	Buckets      []string         `json:"buckets,omitempty"`
	BucketSize   *int             `json:"bucketSize,omitempty"`
}

// SimpleQueryRequest is the body of POST /query/simple.
type SimpleQueryRequest struct {
	QueryRequest
	Text         string   `json:"text"`
	SearchFields []string `json:"searchFields,omitempty"`
}

// AdvancedQueryRequest is the body of POST /query/advanced.
type AdvancedQueryRequest struct {
	QueryRequest
	Filters []FilterDefinition `json:"filters"`
}

// HitResponse is one returned document.
type HitResponse struct {
	Index  string            `json:"index"`
	ID     string            `json:"id"`
	Source gojson.RawMessage `json:"source"`
}

// QueryResponse is the body of a query response.
type QueryResponse struct {
	Total   int64           `json:"total"`
	TookMs  int64           `json:"tookMs"`
	Hits    []HitResponse   `json:"hits"`
	Buckets []result.Bucket `json:"buckets,omitempty"`
}

// ComparatorResponse describes one supported comparator.
type ComparatorResponse struct {
	Display string `json:"display"`
	Value   string `json:"value"`
	Negated bool   `json:"negated"`
	Range   bool   `json:"range"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Collections int               `json:"collections"`
	Scope       string            `json:"scope,omitempty"`
	Version     string            `json:"version"`
	Commit      string            `json:"commit"`
}
