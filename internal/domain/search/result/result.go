// Package result normalizes backend responses into documents, totals and buckets.
package result

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Hit is one returned document. SortValues holds its sort key values when
// they were requested, one per key.
type Hit struct {
	Index      string
	ID         string
	Source     []byte
	SortValues []string
}

// BucketValue is the count of one distinct value.
type BucketValue struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Bucket holds the grouped counts of one bucket field.
type Bucket struct {
	Name   string        `json:"name"`
	Values []BucketValue `json:"values"`
}

// Results is the outcome of one query.
type Results struct {
	Hits    []Hit
	Total   int64
	Took    time.Duration
	Buckets []Bucket
}

// Unmarshaler decodes a JSON source.
type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

// Decode converts every hit source into T.
func Decode[T any](u Unmarshaler, r *Results) ([]T, error) {
	out := make([]T, 0, len(r.Hits))
	for _, h := range r.Hits {
		var v T
		if err := u.Unmarshal(h.Source, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", h.Index, h.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Bucket returns the bucket named name.
func (r *Results) Bucket(name string) (Bucket, bool) {
	for _, b := range r.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return Bucket{}, false
}

// Merge combines per-index results in index order: totals add up, hits
// concatenate, bucket counts add per key. Took is the slowest part.
func Merge(parts ...*Results) *Results {
	out := &Results{}
	var bucketOrder []string
	counts := map[string]map[string]int64{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Total += p.Total
		out.Hits = append(out.Hits, p.Hits...)
		if p.Took > out.Took {
			out.Took = p.Took
		}
		for _, b := range p.Buckets {
			m, ok := counts[b.Name]
			if !ok {
				m = map[string]int64{}
				counts[b.Name] = m
				bucketOrder = append(bucketOrder, b.Name)
			}
			for _, v := range b.Values {
				m[v.Key] += v.Count
			}
		}
	}
	for _, name := range bucketOrder {
		out.Buckets = append(out.Buckets, Bucket{Name: name, Values: SortValues(counts[name])})
	}
	return out
}

// Page merges the results of several indices into one page. Every part
// holds the leading skip+take hits of its index. Hits are ordered by their
// sort values under ascending, or kept in index order when there are no sort
// keys, before skip and take apply.
func Page(ascending []bool, skip, take int, parts ...*Results) *Results {
	out := Merge(parts...)
	if len(ascending) > 0 {
		SortHits(out.Hits, ascending)
	}
	if skip >= len(out.Hits) {
		out.Hits = nil
		return out
	}
	out.Hits = out.Hits[skip:min(skip+take, len(out.Hits))]
	return out
}

// SortHits orders hits by their sort values, stably. Values compare as
// numbers when both parse, otherwise as case-insensitive strings. Missing
// values sort last in either direction.
func SortHits(hits []Hit, ascending []bool) {
	sort.SliceStable(hits, func(i, j int) bool {
		for k, asc := range ascending {
			c, decided := compareSortValue(valueAt(hits[i].SortValues, k), valueAt(hits[j].SortValues, k))
			if c == 0 {
				continue
			}
			if decided || asc {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func valueAt(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// compareSortValue returns the order of a and b. decided is set when one
// side is missing, which puts it last regardless of direction.
func compareSortValue(a, b string) (int, bool) {
	switch {
	case a == "" && b == "":
		return 0, false
	case a == "":
		return 1, true
	case b == "":
		return -1, true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1, false
		case fa > fb:
			return 1, false
		}
		return 0, false
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b)), false
}

// SortValues orders counts by count desc, then key asc.
func SortValues(counts map[string]int64) []BucketValue {
	vals := make([]BucketValue, 0, len(counts))
	for k, c := range counts {
		vals = append(vals, BucketValue{Key: k, Count: c})
	}
	sort.Slice(vals, func(i, j int) bool {
		if vals[i].Count != vals[j].Count {
			return vals[i].Count > vals[j].Count
		}
		return vals[i].Key < vals[j].Key
	})
	return vals
}
