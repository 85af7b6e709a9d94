package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/sqee/internal/db"
)

// JSONSetMulti stores JSON documents in a single DoMulti round-trip.
func (s *Store) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) ([]error, error) {
	if len(items) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		path := item.Path
		if path == "" {
			path = "$"
		}
		cmds[i] = s.b().Arbitrary("JSON.SET").Keys(item.Key).Args(path, string(item.Data)).Build()
	}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return collectItemErrors(db.OpJSONSet, keys, s.client.DoMulti(ctx, cmds...))
}

// DelMulti deletes keys in a single DoMulti round-trip. Missing keys are not errors.
func (s *Store) DelMulti(ctx context.Context, keys []string) ([]error, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Del().Key(key).Build()
	}

	return collectItemErrors(db.OpDel, keys, s.client.DoMulti(ctx, cmds...))
}

// JSONGet retrieves a JSON document by key and optional paths.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	args := make([]string, len(paths))
	copy(args, paths)

	cmd := s.b().Arbitrary("JSON.GET").Keys(key).Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, db.Wrap(db.OpJSONGet, key, err)
	}
	if raw == "" {
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw), nil
}

// collectItemErrors splits pipeline results into per-item server errors and a
// round-trip failure (connection, context), which is reported once.
func collectItemErrors(op string, keys []string, results []rueidis.RedisResult) ([]error, error) {
	errs := make([]error, len(results))
	for i, res := range results {
		err := res.Error()
		if err == nil {
			continue
		}
		if _, ok := rueidis.IsRedisErr(err); ok {
			errs[i] = db.Wrap(op, keys[i], err)
			continue
		}
		return nil, &db.Error{Op: op, Err: fmt.Errorf("pipeline: %w", err)}
	}
	return errs, nil
}
