package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

// StorageType is the ON clause of FT.CREATE. Only JSON is used.
type StorageType string

// StorageJSON indexes RedisJSON documents.
const StorageJSON StorageType = "JSON"

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
)

// IndexField is one attribute of an FT index schema.
type IndexField struct {
	Name  string // JSONPath, e.g. $.customer.firstName or $.tags[*]
	Alias string // attribute name, see Attribute
	Type  IndexFieldType

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool

	// Sortable keeps a normalized copy for SORTBY; tags and text are lower-cased.
	Sortable bool
	// Weight boosts TEXT matches; zero means the server default.
	Weight float64
}

// IndexDefinition is the input of FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true
		if f.Weight < 0 {
			return errors.New("negative weight on field " + key)
		}
	}

	return nil
}

// IsValidIdentifier reports whether s is usable as an index or attribute name: [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}

// Attribute maps a dotted property path to its FT attribute name. Document
// types reject paths that would share one.
func Attribute(name string) string {
	return doctype.AttributeName(name)
}

// DocumentPrefix is the key prefix of every document of index.
func DocumentPrefix(index string) string {
	return index + ":"
}

// DocumentKey is the key of one document of index.
func DocumentKey(index, id string) string {
	return index + ":" + id
}

// SplitDocumentKey returns the index and document id of key.
func SplitDocumentKey(key string) (index, id string) {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}
