package sqee

import (
	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/field"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/comparator"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
	"github.com/kailas-cloud/sqee/internal/usecase/cluster"
)

// Registry and collection types.
type (
	Cluster          = cluster.Cluster
	Outcome          = cluster.Outcome
	QueryResult      = cluster.QueryResult
	Collection       = domcol.Collection
	CollectionConfig = domcol.Config
	ConfigOption     = domcol.ConfigOption
	Settings         = domcol.Settings
	Schema           = schema.Schema
	Field            = field.Field
	FieldType        = field.Type
	FieldOption      = field.Option
)

// Document types.
type (
	Document     = domain.Document
	DocumentBase = domain.DocumentBase
	RawDocument  = domain.RawDocument
	ItemError    = domain.ItemError
	Descriptor   = doctype.Descriptor
	TypeField    = doctype.Field
	Kind         = doctype.Kind
)

// Query types.
type (
	Comparator  = comparator.Comparator
	Criteria    = request.Criteria
	Results     = result.Results
	Hit         = result.Hit
	Bucket      = result.Bucket
	BucketValue = result.BucketValue
)

// Provisioning outcomes.
const (
	Failed        = cluster.Failed
	Created       = cluster.Created
	AlreadyExists = cluster.AlreadyExists
)

// Descriptor field kinds.
const (
	KindText    = doctype.Text
	KindNumeric = doctype.Numeric
	KindBoolean = doctype.Boolean
	KindObject  = doctype.Object
)

// Field type labels.
const (
	FieldText    = field.Text
	FieldKeyword = field.Keyword
	FieldNumber  = field.Number
	FieldBoolean = field.Boolean
	FieldDate    = field.Date
	FieldObject  = field.Object
)

// Built-in comparators.
var (
	AnyWord            = comparator.AnyWord
	Between            = comparator.Between
	Equal              = comparator.Equal
	FullPhrase         = comparator.FullPhrase
	GreaterThan        = comparator.GreaterThan
	GreaterThanOrEqual = comparator.GreaterThanOrEqual
	LessThan           = comparator.LessThan
	LessThanOrEqual    = comparator.LessThanOrEqual
	NotAnyWord         = comparator.NotAnyWord
	NotEqual           = comparator.NotEqual
	PartialPhrase      = comparator.PartialPhrase
)

// Collection config options.
var (
	WithShards       = domcol.WithShards
	WithForceRefresh = domcol.WithForceRefresh
	WithEagerSchema  = domcol.WithEagerSchema
	WithSchema       = domcol.WithSchema
)

// NewCollectionConfig builds a collection config with default settings:
// one primary shard, two replicas, deferred refresh and eager schema persistence.
func NewCollectionConfig(name, documentType string, opts ...ConfigOption) *CollectionConfig {
	return domcol.NewConfig(name, documentType, opts...)
}

// NewSchema creates an empty schema for a collection.
func NewSchema(collectionName, documentType string) *Schema {
	return schema.New(collectionName, documentType)
}

// NewField creates a schema field node.
func NewField(name string, ft FieldType, opts ...FieldOption) (Field, error) {
	return field.New(name, ft, opts...)
}

// Field options.
var (
	WithBoost        = field.WithBoost
	Filterable       = field.Filterable
	IncludeInResults = field.IncludeInResults
	WithLabel        = field.WithLabel
	WithFields       = field.WithFields
)
