package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/kailas-cloud/sqee/internal/db"
)

// CreateIndex creates an FT index from the given definition.
// An existing index of the same name yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return db.Wrap(db.OpCreateIndex, def.Name, err)
	}
	return nil
}

// DropIndex removes an FT index by name, optionally with its documents (DD).
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []string{name}
	if deleteDocs {
		args = append(args, "DD")
	}
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isMissingIndex(err) {
			return db.ErrIndexNotFound
		}
		return db.Wrap(db.OpDropIndex, name, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isMissingIndex(err) {
			return false, nil
		}
		return false, db.Wrap(db.OpIndexInfo, name, err)
	}
	return true, nil
}

// ListIndexes returns every FT index name, sorted.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	cmd := s.b().Arbitrary("FT._LIST").Build()
	names, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, db.Wrap(db.OpListIndexes, "", err)
	}
	sort.Strings(names)
	return names, nil
}

// AliasAdd points alias at index. An alias already in use yields db.ErrAliasExists.
func (s *Store) AliasAdd(ctx context.Context, alias, index string) error {
	cmd := s.b().Arbitrary("FT.ALIASADD").Args(alias, index).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "alias already exists") {
			return db.ErrAliasExists
		}
		return db.Wrap(db.OpAliasAdd, alias, err)
	}
	return nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageJSON
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldText:
		args = append(args, "TEXT")
		if f.Weight > 0 {
			args = append(args, "WEIGHT", strconv.FormatFloat(f.Weight, 'f', -1, 64))
		}

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	default:
		return nil, errors.New("unknown field type")
	}

	if f.Sortable {
		args = append(args, "SORTABLE")
	}

	return args, nil
}
