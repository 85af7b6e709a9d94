package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) ([]error, error)
	delMultiFn     func(ctx context.Context, keys []string) ([]error, error)
	jsonGetFn      func(ctx context.Context, key string, paths ...string) ([]byte, error)
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) ([]error, error) {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return make([]error, len(items)), nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) ([]error, error) {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return make([]error, len(keys)), nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, codec.Default), ms
}

type order struct {
	domain.DocumentBase
	OrderID           int    `json:"orderId"`
	CustomerFirstName string `json:"customerFirstName"`
}

func testOrder(id string) *order {
	return &order{
		DocumentBase:      domain.DocumentBase{ID: id, CollectionID: "abc123_orders", Type: "sample.Order"},
		OrderID:           123,
		CustomerFirstName: "Matt",
	}
}

// scalarDoc encodes to a JSON string rather than an object.
type scalarDoc string

func (s scalarDoc) DocumentID() string           { return string(s) }
func (s scalarDoc) DocumentCollectionID() string { return "abc123_orders" }
