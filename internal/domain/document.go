package domain

import "strings"

// Reserved document field names, always part of a result.
const (
	FieldID           = "id"
	FieldCollectionID = "collectionId"
	FieldType         = "type"
)

// KeyPrefix namespaces metadata keys in the backend.
const KeyPrefix = "sqee:"

// Reserved name suffixes and separators.
const (
	KeywordSuffix     = "keyword"
	SortSuffix        = "sort"
	NameSeparator     = "_"
	TextPartSeparator = "|||"
	SchemaMetaKey     = "collectionSchema"
	SettingsMetaKey   = "collectionSettings"
	SortNormalizer    = "lowercase"
)

// IsReservedField reports whether name is one of the always-returned fields.
func IsReservedField(name string) bool {
	return strings.EqualFold(name, FieldID) ||
		strings.EqualFold(name, FieldCollectionID) ||
		strings.EqualFold(name, FieldType)
}

// Document is anything that can be committed to a collection.
type Document interface {
	DocumentID() string
	DocumentCollectionID() string
}

// DocumentBase carries the reserved fields and satisfies Document when embedded.
type DocumentBase struct {
	ID           string `json:"id"`
	CollectionID string `json:"collectionId"`
	Type         string `json:"type,omitempty"`
}

// DocumentID returns the document identifier.
func (d DocumentBase) DocumentID() string { return d.ID }

// DocumentCollectionID returns the owning collection name.
func (d DocumentBase) DocumentCollectionID() string { return d.CollectionID }

// RawDocument is a pre-encoded JSON document whose reserved fields were
// read from the body.
type RawDocument struct {
	ID           string
	CollectionID string
	Body         []byte
}

// DocumentID returns the document identifier.
func (d RawDocument) DocumentID() string { return d.ID }

// DocumentCollectionID returns the owning collection name.
func (d RawDocument) DocumentCollectionID() string { return d.CollectionID }

// MarshalJSON returns the body unchanged.
func (d RawDocument) MarshalJSON() ([]byte, error) { return d.Body, nil }
