// Package schema models the field schema of one collection.
package schema

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/collection/field"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

// Resolver canonicalizes dotted property paths of a document type.
type Resolver interface {
	Canonical(typeName, path string) string
}

// Schema owns the top-level field trees of one collection.
type Schema struct {
	collectionName string
	documentType   string
	fields         []field.Field
	resolver       Resolver
}

// New creates an empty schema.
func New(collectionName, documentType string) *Schema {
	return &Schema{collectionName: collectionName, documentType: documentType}
}

// Reconstruct creates a Schema from persisted state without validation.
func Reconstruct(collectionName, documentType string, fields []field.Field) *Schema {
	return &Schema{collectionName: collectionName, documentType: documentType, fields: fields}
}

// Derive builds a default schema from a descriptor: every textual leaf gets
// keyword and sort children; objects nest their properties. Nested nodes are
// named by their full dotted path, e.g. address.city.keyword.
func Derive(collectionName string, d *doctype.Descriptor) (*Schema, error) {
	s := New(collectionName, d.Name)
	for _, f := range d.Fields {
		built, err := deriveField(f, "", map[*doctype.Descriptor]bool{d: true})
		if err != nil {
			return nil, err
		}
		if err := s.AddField(built); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func deriveField(f doctype.Field, prefix string, onPath map[*doctype.Descriptor]bool) (field.Field, error) {
	name := prefix + f.Name
	switch f.Kind {
	case doctype.Text:
		return field.New(name, field.Text, field.WithFields(
			field.MustNew(name+"."+domain.KeywordSuffix, field.Keyword),
			field.MustNew(name+"."+domain.SortSuffix, field.Keyword),
		))
	case doctype.Numeric:
		return field.New(name, field.Number)
	case doctype.Boolean:
		return field.New(name, field.Boolean)
	}
	var children []field.Field
	if f.Type != nil && !onPath[f.Type] {
		onPath[f.Type] = true
		defer delete(onPath, f.Type)
		for _, c := range f.Type.Fields {
			built, err := deriveField(c, name+".", onPath)
			if err != nil {
				return field.Field{}, err
			}
			children = append(children, built)
		}
	}
	return field.New(name, field.Object, field.WithFields(children...))
}

// Bind attaches the resolver used to canonicalize lookup names.
func (s *Schema) Bind(r Resolver) *Schema {
	s.resolver = r
	return s
}

// CollectionName returns the owning collection name.
func (s *Schema) CollectionName() string { return s.collectionName }

// DocumentType returns the document type identifier.
func (s *Schema) DocumentType() string { return s.documentType }

// Fields returns a copy of the top-level fields.
func (s *Schema) Fields() []field.Field {
	out := make([]field.Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of top-level fields.
func (s *Schema) Len() int { return len(s.fields) }

// AddField appends f unless a top-level field of the same name exists.
func (s *Schema) AddField(f field.Field) error {
	for _, existing := range s.fields {
		if strings.EqualFold(existing.Name(), f.Name()) {
			return fmt.Errorf("schema %q: %w", s.collectionName, &domain.DuplicateFieldError{Name: f.Name()})
		}
	}
	s.fields = append(s.fields, f)
	return nil
}

// Clone returns an independent copy sharing the immutable fields.
func (s *Schema) Clone() *Schema {
	c := *s
	c.fields = s.Fields()
	return &c
}

// FilterableFieldNames returns keyword names of filterable fields matching names.
func (s *Schema) FilterableFieldNames(names ...string) []string {
	return s.collect(names, field.Field.IsFilterable, field.Field.AllKeywordFields)
}

// BoostedFieldNames returns name^boost entries of matching fields.
func (s *Schema) BoostedFieldNames(names ...string) []string {
	return s.collect(names, field.Field.HasBoostedField, field.Field.AllBoostedFields)
}

// IncludedFieldNames returns included names of matching fields.
func (s *Schema) IncludedFieldNames(names ...string) []string {
	return s.collect(names, field.Field.HasIncludedField, field.Field.AllIncludedFields)
}

// KeywordFieldNames returns keyword names of matching fields.
func (s *Schema) KeywordFieldNames(names ...string) []string {
	return s.collect(names, field.Field.HasKeywordField, field.Field.AllKeywordFields)
}

// SortFieldNames returns sort names of matching fields.
func (s *Schema) SortFieldNames(names ...string) []string {
	return s.collect(names, field.Field.HasSortField, field.Field.AllSortFields)
}

// NDepthFieldByName finds the node named name anywhere in the schema.
func (s *Schema) NDepthFieldByName(name string) (field.Field, bool) {
	for _, f := range s.fields {
		if found, ok := f.Find(name); ok {
			return found, true
		}
	}
	return field.Field{}, false
}

func (s *Schema) canonical(name string) string {
	if s.resolver != nil {
		return s.resolver.Canonical(s.documentType, name)
	}
	stripped, _ := doctype.StripSuffix(name)
	return stripped
}

func (s *Schema) collect(
	names []string, pred func(field.Field) bool, derive func(field.Field) []string,
) []string {
	if len(names) == 0 {
		return nil
	}
	wanted := make([]string, 0, len(names))
	for _, n := range names {
		wanted = append(wanted, s.canonical(n))
	}

	var out []string
	seen := map[string]bool{}
	var visit func(f field.Field)
	visit = func(f field.Field) {
		if pred(f) && treeContains(f.FieldTree(), wanted) {
			for _, n := range derive(f) {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
		for _, c := range f.Fields() {
			visit(c)
		}
	}
	for _, f := range s.fields {
		visit(f)
	}
	return out
}

func treeContains(tree, wanted []string) bool {
	for _, t := range tree {
		for _, w := range wanted {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}
