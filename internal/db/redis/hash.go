package redis

import (
	"context"
	"maps"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/sqee/internal/db"
)

// HSet writes metadata fields in key order so the command is reproducible.
// An empty field set is a no-op.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	cmd := s.b().Hset().Key(key).FieldValue()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		cmd = cmd.FieldValue(name, fields[name])
	}
	return db.Wrap(db.OpHSet, key, s.do(ctx, cmd.Build()).Error())
}

// HGetAll reads one metadata hash. A missing hash is an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, db.Wrap(db.OpHGetAll, key, err)
	}
	return m, nil
}

// HGetAllMulti reads many metadata hashes in one round-trip, aligned with keys.
// Any failing key fails the whole call, since a listing with holes would be wrong.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, db.Wrap(db.OpHGetAll, keys[i], err)
		}
		out[i] = m
	}
	return out, nil
}

// Del removes a metadata hash. Deleting a missing key succeeds.
func (s *Store) Del(ctx context.Context, key string) error {
	return db.Wrap(db.OpDel, key, s.do(ctx, s.b().Del().Key(key).Build()).Error())
}

// Exists reports whether a metadata hash is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, db.Wrap(db.OpExists, key, err)
	}
	return n > 0, nil
}
