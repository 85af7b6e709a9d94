package collection

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

// buildIndex creates the JSON index definition of a collection from its
// document type. Textual leaves get a TEXT attribute, a case-sensitive keyword
// TAG and a lower-cased sortable TAG; numbers are NUMERIC, booleans TAG.
func buildIndex(col *domcol.Collection, d *doctype.Descriptor) (*db.IndexDefinition, error) {
	if d == nil {
		return nil, domain.NotFoundf("document type %q is not registered", col.DocumentType())
	}

	b := db.NewIndex(col.Name())

	for _, leaf := range d.IndexedLeaves() {
		attr := db.Attribute(leaf.Path)
		// Multi-value paths cannot be SORTABLE.
		single := leaf.IndexPath == leaf.JSONPath

		switch leaf.Kind {
		case doctype.Text:
			b.Text(leaf.IndexPath, attr)
			if w, ok := boostFor(col.Schema(), leaf.Path); ok {
				b.Weight(w)
			}
			b.Keyword(leaf.IndexPath, db.Attribute(doctype.KeywordName(leaf)))
			b.SortKey(leaf.IndexPath, db.Attribute(doctype.SortName(leaf)))
			if single {
				b.Sortable()
			}
		case doctype.Numeric:
			b.Numeric(leaf.IndexPath, attr)
			if single {
				b.Sortable()
			}
		case doctype.Boolean:
			b.Flag(leaf.IndexPath, attr)
		}
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", col.Name(), err)
	}
	return def, nil
}

// boostFor finds a positive boost for path, by full name first, then by its last segment.
func boostFor(s *schema.Schema, path string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	f, ok := s.NDepthFieldByName(path)
	if !ok {
		if i := strings.LastIndexByte(path, '.'); i >= 0 {
			f, ok = s.NDepthFieldByName(path[i+1:])
		}
	}
	if !ok {
		return 0, false
	}
	w, ok := f.Boost()
	return w, ok && w > 0
}
