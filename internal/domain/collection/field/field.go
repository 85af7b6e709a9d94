package field

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain"
)

// Type is an informational type label of a field.
type Type string

// Common type labels.
const (
	Text    Type = "text"
	Keyword Type = "keyword"
	Number  Type = "number"
	Boolean Type = "boolean"
	Date    Type = "date"
	Object  Type = "object"
)

// Field is an immutable node of a collection's field tree.
type Field struct {
	name             string
	fieldType        Type
	boost            *float64
	isFilterable     *bool
	includeInResults *bool
	label            string
	fields           []Field
}

// Option configures a Field at construction.
type Option func(*Field)

// WithBoost sets the query-time boost.
func WithBoost(b float64) Option {
	return func(f *Field) { f.boost = &b }
}

// Filterable marks the field as usable in filters.
func Filterable(v bool) Option {
	return func(f *Field) { f.isFilterable = &v }
}

// IncludeInResults marks the field as part of the default result set.
func IncludeInResults(v bool) Option {
	return func(f *Field) { f.includeInResults = &v }
}

// WithLabel sets the display label.
func WithLabel(label string) Option {
	return func(f *Field) { f.label = label }
}

// WithFields sets the child fields.
func WithFields(children ...Field) Option {
	return func(f *Field) { f.fields = children }
}

// New validates and creates a Field.
// Child names must be unique among siblings, case-insensitively.
func New(name string, ft Type, opts ...Option) (Field, error) {
	if strings.TrimSpace(name) == "" {
		return Field{}, domain.Validationf("field name is required")
	}
	f := Field{name: name, fieldType: ft}
	for _, o := range opts {
		o(&f)
	}
	seen := make(map[string]bool, len(f.fields))
	for _, c := range f.fields {
		key := strings.ToLower(c.name)
		if seen[key] {
			return Field{}, fmt.Errorf("field %q: %w", name, &domain.DuplicateFieldError{Name: c.name})
		}
		seen[key] = true
	}
	f.fields = append([]Field(nil), f.fields...)
	return f, nil
}

// MustNew is New that panics; intended for static declarations.
func MustNew(name string, ft Type, opts ...Option) Field {
	f, err := New(name, ft, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(
	name string, ft Type, boost *float64, isFilterable, includeInResults *bool,
	label string, children []Field,
) Field {
	return Field{
		name: name, fieldType: ft, boost: boost,
		isFilterable: isFilterable, includeInResults: includeInResults,
		label: label, fields: children,
	}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Type returns the type label.
func (f Field) Type() Type { return f.fieldType }

// Boost returns the boost and whether one is set.
func (f Field) Boost() (float64, bool) {
	if f.boost == nil {
		return 0, false
	}
	return *f.boost, true
}

// BoostPtr returns the raw optional boost.
func (f Field) BoostPtr() *float64 { return f.boost }

// IsFilterablePtr returns the raw optional filterable flag.
func (f Field) IsFilterablePtr() *bool { return f.isFilterable }

// IncludeInResultsPtr returns the raw optional include flag.
func (f Field) IncludeInResultsPtr() *bool { return f.includeInResults }

// IsFilterable reports whether the field may be filtered on.
func (f Field) IsFilterable() bool { return f.isFilterable != nil && *f.isFilterable }

// Label returns the display label.
func (f Field) Label() string { return f.label }

// Fields returns a copy of the children.
func (f Field) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// IsKeywordField reports whether the name carries the keyword suffix.
func (f Field) IsKeywordField() bool { return hasSuffixFold(f.name, domain.KeywordSuffix) }

// IsSortField reports whether the name carries the sort suffix.
func (f Field) IsSortField() bool { return hasSuffixFold(f.name, domain.SortSuffix) }

// IsBoostedField reports a present, non-zero boost.
func (f Field) IsBoostedField() bool { return f.boost != nil && *f.boost != 0 }

// IsIncludedField reports whether the field is returned by default.
func (f Field) IsIncludedField() bool {
	return (f.includeInResults != nil && *f.includeInResults) || domain.IsReservedField(f.name)
}

// HasBoostedField reports whether a direct child is boosted.
func (f Field) HasBoostedField() bool { return f.anyChild(Field.IsBoostedField) }

// HasKeywordField reports whether a direct child is a keyword field.
func (f Field) HasKeywordField() bool { return f.anyChild(Field.IsKeywordField) }

// HasSortField reports whether a direct child is a sort field.
func (f Field) HasSortField() bool { return f.anyChild(Field.IsSortField) }

// HasIncludedField reports whether a direct child is included.
func (f Field) HasIncludedField() bool { return f.anyChild(Field.IsIncludedField) }

// FieldTree is this name followed by every descendant name, depth-first.
func (f Field) FieldTree() []string {
	out := []string{f.name}
	for _, c := range f.fields {
		out = append(out, c.FieldTree()...)
	}
	return out
}

// BoostedFieldName renders "name^boost".
func (f Field) BoostedFieldName() string {
	b, _ := f.Boost()
	return f.name + "^" + strconv.FormatFloat(b, 'f', -1, 64)
}

// AllBoostedFields lists this node and its direct children that are boosted, as name^boost.
func (f Field) AllBoostedFields() []string {
	return f.collect(Field.IsBoostedField, Field.BoostedFieldName)
}

// AllIncludedFields lists this node and its direct included children.
func (f Field) AllIncludedFields() []string {
	return f.collect(Field.IsIncludedField, Field.Name)
}

// AllKeywordFields lists this node and its direct keyword children.
func (f Field) AllKeywordFields() []string {
	return f.collect(Field.IsKeywordField, Field.Name)
}

// AllSortFields lists this node and its direct sort children.
func (f Field) AllSortFields() []string {
	return f.collect(Field.IsSortField, Field.Name)
}

// Find returns the node named name within this subtree, depth-first.
func (f Field) Find(name string) (Field, bool) {
	if strings.EqualFold(f.name, name) {
		return f, true
	}
	for _, c := range f.fields {
		if found, ok := c.Find(name); ok {
			return found, true
		}
	}
	return Field{}, false
}

func (f Field) anyChild(pred func(Field) bool) bool {
	for _, c := range f.fields {
		if pred(c) {
			return true
		}
	}
	return false
}

func (f Field) collect(pred func(Field) bool, render func(Field) string) []string {
	var out []string
	if pred(f) {
		out = append(out, render(f))
	}
	for _, c := range f.fields {
		if pred(c) {
			out = append(out, render(c))
		}
	}
	return out
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
