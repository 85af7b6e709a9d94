package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
	"github.com/kailas-cloud/sqee/internal/usecase/cluster"
	healthuc "github.com/kailas-cloud/sqee/internal/usecase/health"
)

// --- Mocks ---

type mockRegistry struct {
	addFn      func(ctx context.Context, cfg *domcol.Config) (cluster.Outcome, *domcol.Collection, error)
	deleteFn   func(ctx context.Context, name string, onServer bool) (bool, error)
	schemaFn   func(ctx context.Context, name string, s *schema.Schema) (bool, error)
	commitFn   func(ctx context.Context, docs []domain.Document) (bool, []domain.ItemError, error)
	deleteDocs func(ctx context.Context, collection string, ids []string) (bool, []domain.ItemError, error)
	getFn      func(ctx context.Context, collection, id string) ([]byte, error)
	queryFn    func(ctx context.Context, criteria request.Criteria) (*result.Results, error)
	cols       map[string]*domcol.Collection
	resolver   *doctype.Bound
}

func (m *mockRegistry) ScopeID() string { return "abc123" }

func (m *mockRegistry) TryAddCollection(ctx context.Context, cfg *domcol.Config) (cluster.Outcome, *domcol.Collection, error) {
	return m.addFn(ctx, cfg)
}

func (m *mockRegistry) TryDeleteCollection(ctx context.Context, name string, onServer bool) (bool, error) {
	return m.deleteFn(ctx, name, onServer)
}

func (m *mockRegistry) TryUpdateCollectionSchema(ctx context.Context, name string, s *schema.Schema) (bool, error) {
	return m.schemaFn(ctx, name, s)
}

func (m *mockRegistry) TryCommitBatch(ctx context.Context, docs []domain.Document) (bool, []domain.ItemError, error) {
	return m.commitFn(ctx, docs)
}

func (m *mockRegistry) TryDelete(ctx context.Context, collection string, ids []string) (bool, []domain.ItemError, error) {
	return m.deleteDocs(ctx, collection, ids)
}

func (m *mockRegistry) Get(ctx context.Context, collection, id string) ([]byte, error) {
	return m.getFn(ctx, collection, id)
}

func (m *mockRegistry) Query(ctx context.Context, criteria request.Criteria) (*result.Results, error) {
	return m.queryFn(ctx, criteria)
}

func (m *mockRegistry) Collection(name string) (*domcol.Collection, bool) {
	c, ok := m.cols[domcol.AddScopeToName("abc123", name)]
	return c, ok
}

func (m *mockRegistry) Collections() []*domcol.Collection {
	out := make([]*domcol.Collection, 0, len(m.cols))
	for _, c := range m.cols {
		out = append(out, c)
	}
	return out
}

func (m *mockRegistry) Resolver(name string) (*doctype.Bound, error) {
	if m.resolver == nil {
		return nil, domain.NotFoundf("collection %s", name)
	}
	return m.resolver, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func ordersCollection() *domcol.Collection {
	return domcol.New("abc123_orders", domcol.NewConfig("orders", "sample.Order"), nil)
}

func newTestRouter(reg *mockRegistry) http.Handler {
	srv := NewServer(reg, mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckOK},
	}}, nil, Limits{DefaultTake: 10, MaxTake: 100, BucketSize: 5, MaxBatchSize: 3}, nil)
	r := chi.NewRouter()
	srv.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Tests ---

func TestCreateCollection_Created(t *testing.T) {
	var got *domcol.Config
	reg := &mockRegistry{addFn: func(_ context.Context, cfg *domcol.Config) (cluster.Outcome, *domcol.Collection, error) {
		got = cfg
		return cluster.Created, domcol.New("abc123_orders", cfg, cfg.Schema), nil
	}}

	rr := do(t, newTestRouter(reg), "POST", "/collections", `{
		"name": "orders", "documentType": "sample.Order", "replicaShards": 0,
		"fields": [{"name": "customerFirstName", "type": "text", "boost": 2,
			"fields": [{"name": "keyword", "type": "keyword"}]}]
	}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.ReplicaShards != 0 || got.PrimaryShards != 1 || !got.EagerlyPersistSchema {
		t.Errorf("unexpected config: %+v", got.Settings)
	}
	if got.Schema == nil || got.Schema.Len() != 1 {
		t.Fatalf("expected schema with one field, got %+v", got.Schema)
	}

	var resp CreateCollectionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != "created" || resp.Collection.Name != "abc123_orders" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Collection.Fields) != 1 || len(resp.Collection.Fields[0].Fields) != 1 {
		t.Errorf("expected nested field tree, got %+v", resp.Collection.Fields)
	}
}

func TestCreateCollection_AlreadyExists(t *testing.T) {
	reg := &mockRegistry{addFn: func(context.Context, *domcol.Config) (cluster.Outcome, *domcol.Collection, error) {
		return cluster.AlreadyExists, ordersCollection(), nil
	}}

	rr := do(t, newTestRouter(reg), "POST", "/collections", `{"name":"orders","documentType":"sample.Order"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCreateCollection_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  ErrorCode
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ErrorCodeBadRequest},
		{"validation", `{"name":""}`, domain.Validationf("collection name is required"), http.StatusBadRequest, ErrorCodeValidationFailed},
		{"unknown type", `{"name":"x","documentType":"y"}`, domain.NotFoundf("document type"), http.StatusNotFound, ErrorCodeNotFound},
		{"backend", `{"name":"x","documentType":"y"}`, domain.NewBackendError("FT.CREATE", context.DeadlineExceeded), http.StatusBadGateway, ErrorCodeBackendError},
		{"duplicate field", `{"name":"x","documentType":"y","fields":[{"name":"a","type":"text"},{"name":"A","type":"text"}]}`, nil, http.StatusBadRequest, ErrorCodeDuplicateField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &mockRegistry{addFn: func(context.Context, *domcol.Config) (cluster.Outcome, *domcol.Collection, error) {
				return cluster.Failed, nil, tt.err
			}}

			rr := do(t, newTestRouter(reg), "POST", "/collections", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if e := decodeError(t, rr); e.Code != tt.wantErr {
				t.Errorf("expected code %s, got %s", tt.wantErr, e.Code)
			}
		})
	}
}

func TestCreateCollection_BackendMessageHidden(t *testing.T) {
	reg := &mockRegistry{addFn: func(context.Context, *domcol.Config) (cluster.Outcome, *domcol.Collection, error) {
		return cluster.Failed, nil, domain.NewBackendError("FT.CREATE", context.DeadlineExceeded)
	}}

	rr := do(t, newTestRouter(reg), "POST", "/collections", `{"name":"x","documentType":"y"}`)
	if e := decodeError(t, rr); strings.Contains(e.Message, "FT.CREATE") {
		t.Errorf("backend detail leaked: %q", e.Message)
	}
}

func TestListAndGetCollections(t *testing.T) {
	reg := &mockRegistry{cols: map[string]*domcol.Collection{"abc123_orders": ordersCollection()}}
	h := newTestRouter(reg)

	rr := do(t, h, "GET", "/collections", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var list CollectionListResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].DocumentType != "sample.Order" {
		t.Errorf("unexpected list: %+v", list)
	}

	if rr := do(t, h, "GET", "/collections/orders", ""); rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/collections/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteCollection(t *testing.T) {
	var gotName string
	var gotServer bool
	reg := &mockRegistry{deleteFn: func(_ context.Context, name string, onServer bool) (bool, error) {
		gotName, gotServer = name, onServer
		if name == "missing" {
			return false, domain.NotFoundf("collection %s", name)
		}
		return true, nil
	}}
	h := newTestRouter(reg)

	rr := do(t, h, "DELETE", "/collections/orders?server=true", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if gotName != "orders" || !gotServer {
		t.Errorf("unexpected call: %q server=%v", gotName, gotServer)
	}

	do(t, h, "DELETE", "/collections/orders", "")
	if gotServer {
		t.Error("expected soft delete without server=true")
	}

	if rr := do(t, h, "DELETE", "/collections/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateSchema(t *testing.T) {
	col := ordersCollection()
	reg := &mockRegistry{cols: map[string]*domcol.Collection{"abc123_orders": col}}
	reg.schemaFn = func(_ context.Context, name string, s *schema.Schema) (bool, error) {
		if name != "abc123_orders" || s.CollectionName() != "abc123_orders" || s.Len() != 2 {
			t.Errorf("unexpected schema update: %s %+v", name, s)
		}
		reg.cols[name] = col.WithSchema(s)
		return true, nil
	}

	rr := do(t, newTestRouter(reg), "PUT", "/collections/orders/schema",
		`{"fields":[{"name":"orderId","type":"number","isFilterable":true},{"name":"customerFirstName","type":"text"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp CollectionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Fields) != 2 || resp.Fields[0].IsFilterable == nil || !*resp.Fields[0].IsFilterable {
		t.Errorf("unexpected fields: %+v", resp.Fields)
	}
}

func TestCommitDocuments(t *testing.T) {
	var got []domain.Document
	reg := &mockRegistry{commitFn: func(_ context.Context, docs []domain.Document) (bool, []domain.ItemError, error) {
		got = docs
		return true, nil, nil
	}}

	rr := do(t, newTestRouter(reg), "POST", "/documents", `{"documents":[
		{"id":"1","collectionId":"abc123_orders","customerFirstName":"Matt"},
		{"id":"2","collectionId":"abc123_orders","customerFirstName":"Alice"}
	]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(got) != 2 || got[1].DocumentID() != "2" || got[1].DocumentCollectionID() != "abc123_orders" {
		t.Fatalf("unexpected documents: %+v", got)
	}
	raw, ok := got[0].(domain.RawDocument)
	if !ok || !strings.Contains(string(raw.Body), "Matt") {
		t.Errorf("expected raw body to be kept, got %+v", got[0])
	}

	var resp BulkResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Succeeded || resp.Processed != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCommitDocuments_PartialFailure(t *testing.T) {
	reg := &mockRegistry{commitFn: func(context.Context, []domain.Document) (bool, []domain.ItemError, error) {
		return false, []domain.ItemError{{Collection: "abc123_orders", DocumentID: "1", Reason: "bad"}}, nil
	}}

	rr := do(t, newTestRouter(reg), "POST", "/documents", `{"documents":[{"id":"1","collectionId":"abc123_orders"}]}`)
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", rr.Code)
	}
	var resp BulkResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Succeeded || len(resp.Errors) != 1 || resp.Errors[0].DocumentID != "1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCommitDocuments_Validation(t *testing.T) {
	reg := &mockRegistry{commitFn: func(context.Context, []domain.Document) (bool, []domain.ItemError, error) {
		t.Fatal("registry must not be called")
		return false, nil, nil
	}}
	h := newTestRouter(reg)

	for name, body := range map[string]string{
		"empty":         `{"documents":[]}`,
		"no id":         `{"documents":[{"collectionId":"c"}]}`,
		"no collection": `{"documents":[{"id":"1"}]}`,
		"not an object": `{"documents":[42]}`,
		"too many":      `{"documents":[{"id":"1","collectionId":"c"},{"id":"2","collectionId":"c"},{"id":"3","collectionId":"c"},{"id":"4","collectionId":"c"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, "POST", "/documents", body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestGetDocument(t *testing.T) {
	reg := &mockRegistry{getFn: func(_ context.Context, collection, id string) ([]byte, error) {
		if id != "1" {
			return nil, domain.NotFoundf("document %s/%s", collection, id)
		}
		return []byte(`{"id":"1"}`), nil
	}}
	h := newTestRouter(reg)

	rr := do(t, h, "GET", "/collections/orders/documents/1", "")
	if rr.Code != http.StatusOK || rr.Body.String() != `{"id":"1"}` {
		t.Errorf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, "GET", "/collections/orders/documents/2", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteDocuments(t *testing.T) {
	var gotIDs []string
	reg := &mockRegistry{deleteDocs: func(_ context.Context, collection string, ids []string) (bool, []domain.ItemError, error) {
		if collection != "orders" {
			return false, nil, domain.NotFoundf("collection %s", collection)
		}
		gotIDs = ids
		return true, nil, nil
	}}
	h := newTestRouter(reg)

	rr := do(t, h, "POST", "/collections/orders/documents/delete", `{"ids":["1","2"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(gotIDs) != 2 {
		t.Errorf("unexpected ids: %v", gotIDs)
	}
	if rr := do(t, h, "POST", "/collections/other/documents/delete", `{"ids":["1"]}`); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestSimpleQuery(t *testing.T) {
	var got *request.Request
	reg := &mockRegistry{queryFn: func(_ context.Context, c request.Criteria) (*result.Results, error) {
		req, err := c.Request()
		if err != nil {
			return nil, err
		}
		got = req
		return &result.Results{
			Total: 1,
			Took:  3 * time.Millisecond,
			Hits:  []result.Hit{{Index: "abc123_orders", ID: "1", Source: []byte(`{"id":"1"}`)}},
			Buckets: []result.Bucket{{Name: "customerFirstName", Values: []result.BucketValue{
				{Key: "Matt", Count: 1},
			}}},
		}, nil
	}}

	rr := do(t, newTestRouter(reg), "POST", "/query/simple", `{
		"indices": ["abc123_orders"], "text": "matt", "skip": 5,
		"returnFields": [], "buckets": ["customerFirstName"]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Offset != 5 || got.Limit != 10 {
		t.Errorf("unexpected paging: offset=%d limit=%d", got.Offset, got.Limit)
	}
	if !got.Source.Restricted || len(got.Source.Fields) != 0 {
		t.Errorf("expected restricted empty source, got %+v", got.Source)
	}
	if len(got.Aggregations) != 1 || got.Aggregations[0].Size != 5 {
		t.Errorf("unexpected aggregations: %+v", got.Aggregations)
	}
	if qs, ok := got.Query.(filter.QueryString); !ok || qs.Text != "matt" {
		t.Errorf("unexpected query: %#v", got.Query)
	}

	var resp QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.TookMs != 3 || len(resp.Hits) != 1 || string(resp.Hits[0].Source) != `{"id":"1"}` {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Buckets) != 1 || resp.Buckets[0].Values[0].Count != 1 {
		t.Errorf("unexpected buckets: %+v", resp.Buckets)
	}
}

func TestSimpleQuery_TakeLimit(t *testing.T) {
	reg := &mockRegistry{queryFn: func(context.Context, request.Criteria) (*result.Results, error) {
		t.Fatal("registry must not be called")
		return nil, nil
	}}

	rr := do(t, newTestRouter(reg), "POST", "/query/simple", `{"indices":["abc123_orders"],"take":1000}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	rr = do(t, newTestRouter(reg), "POST", "/query/simple", `{"indices":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without indices, got %d", rr.Code)
	}
}

func TestAdvancedQuery(t *testing.T) {
	var got *request.Request
	reg := &mockRegistry{queryFn: func(_ context.Context, c request.Criteria) (*result.Results, error) {
		req, err := c.Request()
		if err != nil {
			return nil, err
		}
		got = req
		return &result.Results{}, nil
	}}
	h := newTestRouter(reg)

	rr := do(t, h, "POST", "/query/advanced", `{
		"indices": ["abc123_orders"], "take": 0,
		"filters": [{"field": "customerFirstName", "comparator": "EQ", "value": "Matt"}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Limit != 0 {
		t.Errorf("expected take 0 to be kept, got %d", got.Limit)
	}
	if _, ok := got.Query.(filter.Expression); !ok {
		t.Errorf("expected expression, got %#v", got.Query)
	}

	rr = do(t, h, "POST", "/query/advanced",
		`{"indices":["abc123_orders"],"filters":[{"field":"x","comparator":"near","value":"1"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown comparator, got %d", rr.Code)
	}

	rr = do(t, h, "POST", "/query/advanced",
		`{"indices":["abc123_orders"],"filters":[{"field":"price","comparator":"between","value":"oops"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad between value, got %d", rr.Code)
	}
}

func TestListComparators(t *testing.T) {
	rr := do(t, newTestRouter(&mockRegistry{}), "GET", "/comparators", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out []ComparatorResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected built-in comparators")
	}
}

func TestHealthCheck(t *testing.T) {
	rr := do(t, newTestRouter(&mockRegistry{}), "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["backend"] != "ok" || resp.Scope != "abc123" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	srv := NewServer(&mockRegistry{}, mockHealth{report: healthuc.Report{
		Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckError},
	}}, nil, Limits{}, nil)
	r := chi.NewRouter()
	srv.Register(r)

	if rr := do(t, r, "GET", "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}
