package collection

import (
	"context"
	"testing"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/db"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/field"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn    func(ctx context.Context, name string, deleteDocs bool) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	listIndexesFn  func(ctx context.Context) ([]string, error)
	aliasAddFn     func(ctx context.Context, alias, index string) error
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) ListIndexes(ctx context.Context) ([]string, error) {
	if m.listIndexesFn != nil {
		return m.listIndexesFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) AliasAdd(ctx context.Context, alias, index string) error {
	if m.aliasAddFn != nil {
		return m.aliasAddFn(ctx, alias, index)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, codec.Default), ms
}

func bookType() *doctype.Descriptor {
	author := &doctype.Descriptor{Name: "shop.Author", Fields: []doctype.Field{
		{Name: "name", Kind: doctype.Text},
	}}
	return &doctype.Descriptor{Name: "shop.Book", Fields: []doctype.Field{
		{Name: "id", Kind: doctype.Text},
		{Name: "title", Kind: doctype.Text},
		{Name: "pages", Kind: doctype.Numeric},
		{Name: "tags", Kind: doctype.Text, Array: true},
		{Name: "inStock", Kind: doctype.Boolean},
		{Name: "author", Kind: doctype.Object, Type: author},
	}}
}

func testCollection(t *testing.T) *domcol.Collection {
	t.Helper()
	s := schema.New("s1_books", "shop.Book")
	if err := s.AddField(field.MustNew("title", field.Text,
		field.WithBoost(2.5),
		field.Filterable(true),
		field.WithFields(field.MustNew("title.keyword", field.Keyword)),
	)); err != nil {
		t.Fatal(err)
	}
	cfg := domcol.NewConfig("books", "shop.Book", domcol.WithSchema(s))
	return domcol.New("s1_books", cfg, s)
}
