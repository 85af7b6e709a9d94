package sqee

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

const tagKey = "json"

var (
	timeType          = reflect.TypeFor[time.Time]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// Describe builds a document type descriptor from T's JSON struct tags.
// Property names follow the JSON encoding of T: tag names win, untagged
// exported fields keep their Go name, untagged embedded structs are flattened.
// Nested structs become object properties; slices mark a property as an array.
// Map, interface, channel and function fields carry no static shape and are skipped.
func Describe[T any](name string) (*Descriptor, error) {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("sqee: type %s is not a struct", t)
	}

	d := &describer{seen: make(map[reflect.Type]*doctype.Descriptor)}
	desc, err := d.describe(t, name)
	if err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("sqee: describe %s: %w", t, err)
	}
	return desc, nil
}

type describer struct {
	seen map[reflect.Type]*doctype.Descriptor
}

func (d *describer) describe(t reflect.Type, name string) (*doctype.Descriptor, error) {
	if desc, ok := d.seen[t]; ok {
		return desc, nil
	}
	desc := &doctype.Descriptor{Name: name}
	// Registered before the walk so recursive types close the loop.
	d.seen[t] = desc

	fields, err := d.fields(t, name)
	if err != nil {
		return nil, err
	}
	desc.Fields = fields
	return desc, nil
}

// fields collects the properties of t. Direct fields shadow promoted ones.
func (d *describer) fields(t reflect.Type, typeName string) ([]doctype.Field, error) {
	var direct, promoted []doctype.Field
	for i := range t.NumField() {
		sf := t.Field(i)
		tagName, opts, skip := parseTag(sf)
		if skip {
			continue
		}

		ft := sf.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if sf.Anonymous && tagName == "" && ft.Kind() == reflect.Struct {
			inner, err := d.fields(ft, typeName)
			if err != nil {
				return nil, err
			}
			promoted = append(promoted, inner...)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		propName := tagName
		if propName == "" {
			propName = sf.Name
		}
		f, ok, err := d.field(propName, sf.Type, typeName, opts)
		if err != nil {
			return nil, fmt.Errorf("sqee: %s.%s: %w", t, sf.Name, err)
		}
		if ok {
			direct = append(direct, f)
		}
	}

	out := direct
	for _, p := range promoted {
		if !containsField(out, p.Name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *describer) field(name string, t reflect.Type, typeName, opts string) (doctype.Field, bool, error) {
	f := doctype.Field{Name: name}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() != reflect.Uint8 {
		f.Array = true
		t = t.Elem()
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
	}

	if strings.Contains(opts, "string") {
		f.Kind = doctype.Text
		return f, true, nil
	}

	switch {
	case t == timeType, t.Implements(textMarshalerType), reflect.PointerTo(t).Implements(textMarshalerType):
		f.Kind = doctype.Text
	case t.Kind() == reflect.String:
		f.Kind = doctype.Text
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		// []byte encodes as a base64 string.
		f.Kind = doctype.Text
	case t.Kind() == reflect.Bool:
		f.Kind = doctype.Boolean
	case isNumeric(t.Kind()):
		f.Kind = doctype.Numeric
	case t.Kind() == reflect.Struct:
		nestedName := t.Name()
		if nestedName == "" {
			nestedName = name
		}
		nested, err := d.describe(t, typeName+"."+nestedName)
		if err != nil {
			return doctype.Field{}, false, err
		}
		f.Kind = doctype.Object
		f.Type = nested
	default:
		return doctype.Field{}, false, nil
	}
	return f, true, nil
}

// parseTag returns the JSON name, the remaining options and whether the field is skipped.
func parseTag(sf reflect.StructField) (string, string, bool) {
	tag := sf.Tag.Get(tagKey)
	if tag == "-" {
		return "", "", true
	}
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts, false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func containsField(fields []doctype.Field, name string) bool {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}
