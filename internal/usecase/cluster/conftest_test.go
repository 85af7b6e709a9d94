package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
)

const testScope = "abc123"

type order struct {
	domain.DocumentBase
	OrderID           int      `json:"orderId"`
	CustomerFirstName string   `json:"customerFirstName"`
	Tags              []string `json:"tags,omitempty"`
}

func newOrder(collection, id, firstName string, orderID int) order {
	return order{
		DocumentBase:      domain.DocumentBase{ID: id, CollectionID: collection, Type: "sample.Order"},
		OrderID:           orderID,
		CustomerFirstName: firstName,
	}
}

func orderType() *doctype.Descriptor {
	return &doctype.Descriptor{Name: "sample.Order", Fields: []doctype.Field{
		{Name: "id", Kind: doctype.Text},
		{Name: "collectionId", Kind: doctype.Text},
		{Name: "type", Kind: doctype.Text},
		{Name: "orderId", Kind: doctype.Numeric},
		{Name: "customerFirstName", Kind: doctype.Text},
		{Name: "tags", Kind: doctype.Text, Array: true},
	}}
}

func testRegistry(t *testing.T) *doctype.Registry {
	t.Helper()
	reg, err := doctype.NewRegistry(64)
	require.NoError(t, err)
	require.NoError(t, reg.Register(orderType()))
	return reg
}

// memIndex is one index as the backend keeps it.
type memIndex struct {
	documentType string
	settings     domcol.Settings
	// schema is nil while no schema metadata was written.
	schema *schema.Schema
}

// memBackend is an in-memory stand-in for the index store.
type memBackend struct {
	mu      sync.Mutex
	indices map[string]*memIndex
	aliases map[string]string
	docs    map[string]map[string][]byte
	calls   map[string]int
	// searched records every per-index search request.
	searched []*request.Request

	aliasErr  error
	searchErr error
	pingErr   error
	rejectIDs map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{
		indices:   map[string]*memIndex{},
		aliases:   map[string]string{},
		docs:      map[string]map[string][]byte{},
		calls:     map[string]int{},
		rejectIDs: map[string]string{},
	}
}

func (b *memBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *memBackend) hasIndex(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.indices[name]
	return ok
}

// seed registers an index created outside the registry.
func (b *memBackend) seed(name, docType string, s *schema.Schema) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indices[name] = &memIndex{documentType: docType, settings: domcol.DefaultSettings(), schema: s}
}

func (b *memBackend) deps(t *testing.T) Deps {
	return Deps{
		Collections: memCollections{b},
		Documents:   memDocuments{b},
		Search:      memSearch{b},
		Pinger:      b,
		Types:       testRegistry(t),
	}
}

func (b *memBackend) Ping(context.Context) error { return b.pingErr }

type memCollections struct{ *memBackend }

func (m memCollections) Create(_ context.Context, col *domcol.Collection, d *doctype.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	if d == nil {
		return domain.NotFoundf("descriptor")
	}
	if _, ok := m.indices[col.Name()]; ok {
		return fmt.Errorf("%w: index %s", domain.ErrAlreadyExists, col.Name())
	}
	idx := &memIndex{documentType: col.DocumentType(), settings: col.Settings()}
	if col.EagerlyPersistSchema() {
		idx.schema = col.Schema().Clone()
	}
	m.indices[col.Name()] = idx
	return nil
}

func (m memCollections) Alias(_ context.Context, alias, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["alias"]++
	if m.aliasErr != nil {
		return m.aliasErr
	}
	if _, ok := m.aliases[alias]; ok {
		return fmt.Errorf("%w: alias %s", domain.ErrAlreadyExists, alias)
	}
	m.aliases[alias] = index
	return nil
}

func (m memCollections) Get(_ context.Context, name string) (*domcol.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indices[name]
	if !ok {
		return nil, domain.NotFoundf("collection %s", name)
	}
	return idx.collection(name), nil
}

func (m memCollections) GetMulti(_ context.Context, names []string) ([]*domcol.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get_multi"]++
	out := make([]*domcol.Collection, 0, len(names))
	for _, n := range names {
		if idx, ok := m.indices[n]; ok {
			out = append(out, idx.collection(n))
		}
	}
	return out, nil
}

func (idx *memIndex) collection(name string) *domcol.Collection {
	var s *schema.Schema
	if idx.schema != nil {
		s = schema.Reconstruct(name, idx.documentType, idx.schema.Fields())
	}
	return domcol.Reconstruct(name, idx.documentType, idx.settings, s)
}

func (m memCollections) ListNames(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for n := range m.indices {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m memCollections) SaveSchema(_ context.Context, name string, s *schema.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indices[name]
	if !ok {
		return domain.NotFoundf("collection %s", name)
	}
	idx.schema = s.Clone()
	if idx.documentType == "" {
		idx.documentType = s.DocumentType()
	}
	return nil
}

func (m memCollections) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["delete_index"]++
	if _, ok := m.indices[name]; !ok {
		return domain.NotFoundf("index %s", name)
	}
	delete(m.indices, name)
	delete(m.docs, name)
	return nil
}

type memDocuments struct{ *memBackend }

func (m memDocuments) Put(_ context.Context, docs []domain.Document) ([]domain.ItemError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["put"]++
	var itemErrs []domain.ItemError
	for _, d := range docs {
		if reason, ok := m.rejectIDs[d.DocumentID()]; ok {
			itemErrs = append(itemErrs, domain.ItemError{
				Collection: d.DocumentCollectionID(), DocumentID: d.DocumentID(), Reason: reason,
			})
			continue
		}
		data, err := codec.Default.Marshal(d)
		if err != nil {
			return nil, err
		}
		byID, ok := m.docs[d.DocumentCollectionID()]
		if !ok {
			byID = map[string][]byte{}
			m.docs[d.DocumentCollectionID()] = byID
		}
		byID[d.DocumentID()] = data
	}
	return itemErrs, nil
}

func (m memDocuments) Delete(_ context.Context, index string, ids []string) ([]domain.ItemError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs[index], id)
	}
	return nil, nil
}

func (m memDocuments) Get(_ context.Context, index, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[index][id]
	if !ok {
		return nil, domain.NotFoundf("document %s/%s", index, id)
	}
	return data, nil
}

type memSearch struct{ *memBackend }

func (m memSearch) Search(ctx context.Context, index string, req *request.Request) (*result.Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.searched = append(m.searched, req)
	if _, ok := m.indices[index]; !ok {
		return nil, domain.NotFoundf("index %s", index)
	}

	ids := make([]string, 0, len(m.docs[index]))
	for id := range m.docs[index] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matched []result.Hit
	var bodies []map[string]any
	for _, id := range ids {
		raw := m.docs[index][id]
		var body map[string]any
		if err := codec.Default.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		if matches(req.Query, body) {
			matched = append(matched, result.Hit{Index: index, ID: id, Source: raw})
			bodies = append(bodies, body)
		}
	}

	if len(req.Sort) > 0 {
		for i := range matched {
			matched[i].SortValues = sortValues(req.Sort, bodies[i])
		}
		result.SortHits(matched, req.Ascending())
		if !req.SortValues {
			for i := range matched {
				matched[i].SortValues = nil
			}
		}
	}

	res := &result.Results{Total: int64(len(matched))}
	if req.Offset < len(matched) {
		end := min(req.Offset+req.Limit, len(matched))
		res.Hits = matched[req.Offset:end]
	}
	for _, agg := range req.Aggregations {
		path, _ := doctype.StripSuffix(agg.Field)
		counts := map[string]int64{}
		for _, body := range bodies {
			for _, v := range valuesAt(body, path) {
				counts[fmt.Sprint(v)]++
			}
		}
		vals := result.SortValues(counts)
		if len(vals) > agg.Size {
			vals = vals[:agg.Size]
		}
		res.Buckets = append(res.Buckets, result.Bucket{Name: agg.Name, Values: vals})
	}
	return res, nil
}

// sortValues reads the first value of every sort key from body.
func sortValues(keys []request.SortKey, body map[string]any) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		path, _ := doctype.StripSuffix(k.Field)
		if vals := valuesAt(body, path); len(vals) > 0 {
			out[i] = fmt.Sprint(vals[0])
		}
	}
	return out
}

// matches evaluates a clause with case-insensitive word semantics.
func matches(c filter.Clause, body map[string]any) bool {
	switch q := c.(type) {
	case nil, filter.MatchAll:
		return true
	case filter.QueryString:
		hay := strings.ToLower(fmt.Sprint(body))
		for _, w := range strings.Fields(strings.ToLower(q.Text)) {
			if !strings.Contains(hay, w) {
				return false
			}
		}
		return true
	case filter.Term:
		path, _ := doctype.StripSuffix(q.Field)
		for _, v := range valuesAt(body, path) {
			if fmt.Sprint(v) == q.Value {
				return true
			}
		}
		return false
	case filter.Match, filter.Phrase:
		field, value := clauseTarget(q)
		path, _ := doctype.StripSuffix(field)
		for _, v := range valuesAt(body, path) {
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(value)) {
				return true
			}
		}
		return false
	case filter.RangeClause:
		for _, v := range valuesAt(body, q.Field) {
			f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
			if err == nil && inRange(q.Range, f) {
				return true
			}
		}
		return false
	case filter.Not:
		return !matches(q.Clause, body)
	case filter.Expression:
		for _, m := range q.Must() {
			if !matches(m, body) {
				return false
			}
		}
		for _, m := range q.MustNot() {
			if matches(m, body) {
				return false
			}
		}
		if len(q.Should()) == 0 {
			return true
		}
		for _, s := range q.Should() {
			if matches(s, body) {
				return true
			}
		}
		return false
	}
	return false
}

func clauseTarget(c filter.Clause) (string, string) {
	switch q := c.(type) {
	case filter.Match:
		return q.Field, q.Value
	case filter.Phrase:
		return q.Field, q.Value
	}
	return "", ""
}

func inRange(r filter.Range, v float64) bool {
	if p := r.GT(); p != nil && v <= *p {
		return false
	}
	if p := r.GTE(); p != nil && v < *p {
		return false
	}
	if p := r.LT(); p != nil && v >= *p {
		return false
	}
	if p := r.LTE(); p != nil && v > *p {
		return false
	}
	return true
}

// valuesAt walks a dotted path, flattening arrays.
func valuesAt(v any, path string) []any {
	if path == "" {
		if arr, ok := v.([]any); ok {
			return arr
		}
		return []any{v}
	}
	head, rest, _ := strings.Cut(path, ".")
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			if strings.EqualFold(k, head) {
				return valuesAt(child, rest)
			}
		}
	case []any:
		var out []any
		for _, item := range x {
			out = append(out, valuesAt(item, path)...)
		}
		return out
	}
	return nil
}

var errBoom = errors.New("boom")
