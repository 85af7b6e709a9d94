// Package doctype is the explicit registry of document type descriptors used to
// resolve dotted property paths into canonical index field names.
package doctype

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain"
)

// Kind classifies a descriptor field.
type Kind string

// Field kinds.
const (
	Text    Kind = "text"
	Numeric Kind = "numeric"
	Boolean Kind = "boolean"
	Object  Kind = "object"
)

// IsValid checks if the kind is supported.
func (k Kind) IsValid() bool {
	return k == Text || k == Numeric || k == Boolean || k == Object
}

// Field is one declared property of a document type.
type Field struct {
	Name  string
	Kind  Kind
	Array bool
	// Type is the nested descriptor of an Object field.
	Type *Descriptor
}

// Descriptor declares the properties of one document type.
type Descriptor struct {
	Name   string
	Fields []Field
}

// Lookup finds a direct property by name, case-insensitively.
func (d *Descriptor) Lookup(name string) (Field, bool) {
	for _, f := range d.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks names and nesting of the whole descriptor graph, and that
// no two indexed names share an index attribute.
func (d *Descriptor) Validate() error {
	if err := d.validate(map[*Descriptor]bool{}); err != nil {
		return err
	}
	return d.checkAttributes()
}

// checkAttributes rejects paths that map to one attribute, such as a_b and
// a.b, or a property a_keyword next to the keyword variant of text a.
func (d *Descriptor) checkAttributes() error {
	owners := map[string]string{}
	for _, leaf := range d.IndexedLeaves() {
		names := []string{leaf.Path}
		if leaf.Textual() {
			names = append(names, KeywordName(leaf), SortName(leaf))
		}
		for _, n := range names {
			attr := AttributeName(n)
			if other, ok := owners[attr]; ok {
				return domain.Validationf("%s: %q and %q map to the same index attribute %q", d.Name, other, n, attr)
			}
			owners[attr] = n
		}
	}
	return nil
}

func (d *Descriptor) validate(seen map[*Descriptor]bool) error {
	if d == nil {
		return domain.Validationf("descriptor is nil")
	}
	if seen[d] {
		return nil
	}
	seen[d] = true
	if strings.TrimSpace(d.Name) == "" {
		return domain.Validationf("document type name is required")
	}
	names := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" || strings.Contains(f.Name, ".") {
			return domain.Validationf("%s: invalid property name %q", d.Name, f.Name)
		}
		key := strings.ToLower(f.Name)
		if names[key] {
			return fmt.Errorf("%s: %w", d.Name, &domain.DuplicateFieldError{Name: f.Name})
		}
		names[key] = true
		if !f.Kind.IsValid() {
			return domain.Validationf("%s.%s: invalid kind %q", d.Name, f.Name, f.Kind)
		}
		if (f.Kind == Object) != (f.Type != nil) {
			return domain.Validationf("%s.%s: nested type must be set for objects only", d.Name, f.Name)
		}
		if f.Type != nil {
			if err := f.Type.validate(seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolution is a dotted path resolved against a descriptor.
type Resolution struct {
	// Path is the canonical dotted name (declared casing, no suffix).
	Path string
	// JSONPath addresses the value inside the stored document.
	JSONPath string
	// IndexPath addresses every scalar value, expanding a terminal array.
	IndexPath string
	Kind      Kind
}

// Textual reports whether keyword/sort variants apply.
func (r Resolution) Textual() bool { return r.Kind == Text }

// Resolve walks path through the descriptor, case-insensitively.
// A trailing keyword/sort suffix is ignored.
func (d *Descriptor) Resolve(path string) (Resolution, bool) {
	path, _ = StripSuffix(path)
	if path == "" {
		return Resolution{}, false
	}
	segments := strings.Split(path, ".")
	cur := d
	var canon []string
	jsonPath := "$"
	for i, seg := range segments {
		if cur == nil {
			return Resolution{}, false
		}
		f, ok := cur.Lookup(seg)
		if !ok {
			return Resolution{}, false
		}
		canon = append(canon, f.Name)
		jsonPath += "." + f.Name
		last := i == len(segments)-1
		if last {
			res := Resolution{Path: strings.Join(canon, "."), JSONPath: jsonPath, IndexPath: jsonPath, Kind: f.Kind}
			if f.Array {
				res.IndexPath += "[*]"
			}
			return res, true
		}
		if f.Array {
			jsonPath += "[*]"
		}
		cur = f.Type
	}
	return Resolution{}, false
}

// Leaves lists every scalar property reachable from d, depth-first.
// Recursive types stop at the first repetition on a path.
func (d *Descriptor) Leaves() []Resolution {
	var out []Resolution
	d.leaves("", "$", map[*Descriptor]bool{}, &out)
	return out
}

func (d *Descriptor) leaves(prefix, jsonPrefix string, onPath map[*Descriptor]bool, out *[]Resolution) {
	if onPath[d] {
		return
	}
	onPath[d] = true
	defer delete(onPath, d)

	for _, f := range d.Fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		jp := jsonPrefix + "." + f.Name
		if f.Kind == Object {
			next := jp
			if f.Array {
				next += "[*]"
			}
			f.Type.leaves(path, next, onPath, out)
			continue
		}
		idx := jp
		if f.Array {
			idx += "[*]"
		}
		*out = append(*out, Resolution{Path: path, JSONPath: jp, IndexPath: idx, Kind: f.Kind})
	}
}

// IndexedLeaves is Leaves plus every reserved field the type does not
// declare, indexed as text.
func (d *Descriptor) IndexedLeaves() []Resolution {
	leaves := d.Leaves()
	for _, name := range []string{domain.FieldID, domain.FieldCollectionID, domain.FieldType} {
		if _, ok := d.Resolve(name); ok {
			continue
		}
		leaves = append(leaves, Resolution{
			Path: name, JSONPath: "$." + name, IndexPath: "$." + name, Kind: Text,
		})
	}
	return leaves
}

// AttributeName maps a dotted path to its index attribute name,
// e.g. customer.firstName becomes customer_firstName.
func AttributeName(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// StripSuffix removes a trailing ".keyword" or ".sort" and returns it.
func StripSuffix(path string) (string, string) {
	for _, s := range []string{domain.KeywordSuffix, domain.SortSuffix} {
		suffix := "." + s
		if len(path) > len(suffix) && strings.EqualFold(path[len(path)-len(suffix):], suffix) {
			return path[:len(path)-len(suffix)], s
		}
	}
	return path, ""
}

// KeywordName appends the keyword suffix to textual names.
func KeywordName(r Resolution) string {
	if r.Textual() {
		return r.Path + "." + domain.KeywordSuffix
	}
	return r.Path
}

// SortName appends the sort suffix to textual names.
func SortName(r Resolution) string {
	if r.Textual() {
		return r.Path + "." + domain.SortSuffix
	}
	return r.Path
}
