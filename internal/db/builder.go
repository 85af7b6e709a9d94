package db

// WholeValueSeparator is a TAG separator that never occurs in document
// values, so every string is indexed as one tag.
const WholeValueSeparator = "\x1f"

// IndexBuilder assembles the JSON index of one collection. Every index
// covers the keys under DocumentPrefix of its own name.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a JSON index over the documents of index name.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{
		def: IndexDefinition{
			Name:        name,
			StorageType: StorageJSON,
			Prefixes:    []string{DocumentPrefix(name)},
		},
	}
}

// Text adds a full-text attribute.
func (b *IndexBuilder) Text(path, attr string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: attr, Type: IndexFieldText})
}

// Keyword adds an exact-match TAG that keeps case.
func (b *IndexBuilder) Keyword(path, attr string) *IndexBuilder {
	return b.add(IndexField{
		Name:             path,
		Alias:            attr,
		Type:             IndexFieldTag,
		TagSeparator:     WholeValueSeparator,
		TagCaseSensitive: true,
	})
}

// SortKey adds a lower-cased TAG used for ordering and case-insensitive matches.
func (b *IndexBuilder) SortKey(path, attr string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: attr, Type: IndexFieldTag, TagSeparator: WholeValueSeparator})
}

// Numeric adds a NUMERIC attribute.
func (b *IndexBuilder) Numeric(path, attr string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: attr, Type: IndexFieldNumeric})
}

// Flag adds a TAG for boolean values, which JSON indexes store as "true"/"false".
func (b *IndexBuilder) Flag(path, attr string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: attr, Type: IndexFieldTag})
}

// Weight sets the TEXT weight of the last added field.
func (b *IndexBuilder) Weight(w float64) *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		b.def.Fields[n-1].Weight = w
	}
	return b
}

// Sortable marks the last added field SORTABLE.
func (b *IndexBuilder) Sortable() *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		b.def.Fields[n-1].Sortable = true
	}
	return b
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}
