package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn    func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	aggregateFn func(ctx context.Context, q *db.AggregateQuery) ([]db.AggregateRow, error)
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.AggregateRow, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, codec.Default), ms
}

func testRequest() *request.Request {
	return &request.Request{
		Indices: []string{"abc123_orders"},
		Query:   filter.QueryString{Text: "matt"},
		Limit:   request.DefaultTake,
	}
}
