package collection

import (
	"fmt"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/field"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
)

const (
	hashName         = "name"
	hashDocumentType = "documentType"
)

// fieldRow is the serialized form of one field node.
type fieldRow struct {
	Name             string     `json:"name"`
	Type             string     `json:"type,omitempty"`
	Boost            *float64   `json:"boost,omitempty"`
	IsFilterable     *bool      `json:"isFilterable,omitempty"`
	IncludeInResults *bool      `json:"includeInResults,omitempty"`
	Label            string     `json:"label,omitempty"`
	Fields           []fieldRow `json:"fields,omitempty"`
}

// schemaRow is the serialized form stored under domain.SchemaMetaKey.
type schemaRow struct {
	CollectionName         string     `json:"collectionName"`
	CollectionDocumentType string     `json:"collectionDocumentType"`
	Fields                 []fieldRow `json:"fields"`
}

func toFieldRows(fields []field.Field) []fieldRow {
	if len(fields) == 0 {
		return nil
	}
	rows := make([]fieldRow, len(fields))
	for i, f := range fields {
		rows[i] = fieldRow{
			Name:             f.Name(),
			Type:             string(f.Type()),
			Boost:            f.BoostPtr(),
			IsFilterable:     f.IsFilterablePtr(),
			IncludeInResults: f.IncludeInResultsPtr(),
			Label:            f.Label(),
			Fields:           toFieldRows(f.Fields()),
		}
	}
	return rows
}

func fromFieldRows(rows []fieldRow) []field.Field {
	if len(rows) == 0 {
		return nil
	}
	fields := make([]field.Field, len(rows))
	for i, r := range rows {
		fields[i] = field.Reconstruct(
			r.Name, field.Type(r.Type), r.Boost, r.IsFilterable, r.IncludeInResults,
			r.Label, fromFieldRows(r.Fields),
		)
	}
	return fields
}

func encodeSchema(c codec.Codec, s *schema.Schema) (string, error) {
	row := schemaRow{
		CollectionName:         s.CollectionName(),
		CollectionDocumentType: s.DocumentType(),
		Fields:                 toFieldRows(s.Fields()),
	}
	if row.Fields == nil {
		row.Fields = []fieldRow{}
	}
	b, err := c.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(b), nil
}

func decodeSchema(c codec.Codec, raw string) (*schema.Schema, error) {
	var row schemaRow
	if err := c.Unmarshal([]byte(raw), &row); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return schema.Reconstruct(row.CollectionName, row.CollectionDocumentType, fromFieldRows(row.Fields)), nil
}

// collectionToHash converts a collection to its metadata hash. The schema
// entry is written only when withSchema is set.
func collectionToHash(c codec.Codec, col *domcol.Collection, withSchema bool) (map[string]string, error) {
	settings, err := c.Marshal(col.Settings())
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	m := map[string]string{
		hashName:               col.Name(),
		hashDocumentType:       col.DocumentType(),
		domain.SettingsMetaKey: string(settings),
	}
	if withSchema {
		s, err := encodeSchema(c, col.Schema())
		if err != nil {
			return nil, err
		}
		m[domain.SchemaMetaKey] = s
	}
	return m, nil
}

// collectionFromHash hydrates a collection from an HGETALL result.
// A hash without a schema entry yields an unpersisted empty schema.
func collectionFromHash(c codec.Codec, name string, m map[string]string) (*domcol.Collection, error) {
	settings := domcol.DefaultSettings()
	if raw := m[domain.SettingsMetaKey]; raw != "" {
		if err := c.Unmarshal([]byte(raw), &settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings of %s: %w", name, err)
		}
	}

	var s *schema.Schema
	if raw := m[domain.SchemaMetaKey]; raw != "" {
		var err error
		if s, err = decodeSchema(c, raw); err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
	}
	return domcol.Reconstruct(name, m[hashDocumentType], settings, s), nil
}
