package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/field"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/comparator"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
	"github.com/kailas-cloud/sqee/internal/logger"
	"github.com/kailas-cloud/sqee/internal/usecase/cluster"
	healthuc "github.com/kailas-cloud/sqee/internal/usecase/health"
	"github.com/kailas-cloud/sqee/internal/version"
)

// Registry is the collection registry the server drives.
type Registry interface {
	ScopeID() string
	TryAddCollection(ctx context.Context, cfg *domcol.Config) (cluster.Outcome, *domcol.Collection, error)
	TryDeleteCollection(ctx context.Context, name string, deleteOnServer bool) (bool, error)
	TryUpdateCollectionSchema(ctx context.Context, name string, s *schema.Schema) (bool, error)
	TryCommitBatch(ctx context.Context, docs []domain.Document) (bool, []domain.ItemError, error)
	TryDelete(ctx context.Context, collection string, ids []string) (bool, []domain.ItemError, error)
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Query(ctx context.Context, criteria request.Criteria) (*result.Results, error)
	Collection(name string) (*domcol.Collection, bool)
	Collections() []*domcol.Collection
	Resolver(name string) (*doctype.Bound, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Limits bound request sizes.
type Limits struct {
	DefaultTake  int
	MaxTake      int
	BucketSize   int
	MaxBatchSize int
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the collection registry over HTTP.
type Server struct {
	registry      Registry
	health        HealthChecker
	comparators   *comparator.Registry
	limits        Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	registry Registry,
	health HealthChecker,
	comparators *comparator.Registry,
	limits Limits,
	logger *zap.Logger,
) *Server {
	if comparators == nil {
		comparators = comparator.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry:    registry,
		health:      health,
		comparators: comparators,
		limits:      limits,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrDuplicateField, http.StatusBadRequest, ErrorCodeDuplicateField),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, ErrorCodeAlreadyExists),
		sentinelHandler(domain.ErrBackend, http.StatusBadGateway, ErrorCodeBackendError),
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/comparators", s.ListComparators)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.ListCollections)
		r.Post("/", s.CreateCollection)
		r.Get("/{name}", s.GetCollection)
		r.Delete("/{name}", s.DeleteCollection)
		r.Put("/{name}/schema", s.UpdateSchema)
		r.Get("/{name}/documents/{id}", s.GetDocument)
		r.Post("/{name}/documents/delete", s.DeleteDocuments)
	})

	r.Post("/documents", s.CommitDocuments)
	r.Post("/query/simple", s.SimpleQuery)
	r.Post("/query/advanced", s.AdvancedQuery)
}

// CreateCollection handles POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := domcol.NewConfig(req.Name, req.DocumentType)
	if req.PrimaryShards != nil {
		cfg.PrimaryShards = *req.PrimaryShards
	}
	if req.ReplicaShards != nil {
		cfg.ReplicaShards = *req.ReplicaShards
	}
	if req.ForceRefreshOnDocumentCommit != nil {
		cfg.ForceRefreshOnDocumentCommit = *req.ForceRefreshOnDocumentCommit
	}
	if req.EagerlyPersistSchema != nil {
		cfg.EagerlyPersistSchema = *req.EagerlyPersistSchema
	}
	if len(req.Fields) > 0 {
		sch, err := schemaFromDefinitions(req.Name, req.DocumentType, req.Fields)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		cfg.Schema = sch
	}

	outcome, col, err := s.registry.TryAddCollection(r.Context(), cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if outcome == cluster.AlreadyExists {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateCollectionResponse{
		Outcome:    outcome.String(),
		Collection: collectionToResponse(col),
	})
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, _ *http.Request) {
	cols := s.registry.Collections()
	items := make([]CollectionResponse, 0, len(cols))
	for _, c := range cols {
		items = append(items, collectionToResponse(c))
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Items: items})
}

// GetCollection handles GET /collections/{name}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	col, ok := s.registry.Collection(name)
	if !ok {
		s.handleDomainError(w, r, domain.NotFoundf("collection %s", name))
		return
	}
	writeJSON(w, http.StatusOK, collectionToResponse(col))
}

// DeleteCollection handles DELETE /collections/{name}?server=true.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	onServer := strings.EqualFold(r.URL.Query().Get("server"), "true")
	if _, err := s.registry.TryDeleteCollection(r.Context(), chi.URLParam(r, "name"), onServer); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSchema handles PUT /collections/{name}/schema.
func (s *Server) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req UpdateSchemaRequest
	if !decodeBody(w, r, &req) {
		return
	}

	col, ok := s.registry.Collection(name)
	if !ok {
		s.handleDomainError(w, r, domain.NotFoundf("collection %s", name))
		return
	}
	sch, err := schemaFromDefinitions(col.Name(), col.DocumentType(), req.Fields)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if _, err := s.registry.TryUpdateCollectionSchema(r.Context(), col.Name(), sch); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	updated, _ := s.registry.Collection(col.Name())
	writeJSON(w, http.StatusOK, collectionToResponse(updated))
}

// CommitDocuments handles POST /documents.
func (s *Server) CommitDocuments(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "documents must not be empty")
		return
	}
	if s.limits.MaxBatchSize > 0 && len(req.Documents) > s.limits.MaxBatchSize {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("batch size %d exceeds maximum %d", len(req.Documents), s.limits.MaxBatchSize))
		return
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for i, raw := range req.Documents {
		doc, err := rawDocument(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, fmt.Sprintf("documents[%d]: %v", i, err))
			return
		}
		docs = append(docs, doc)
	}

	ok, itemErrs, err := s.registry.TryCommitBatch(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeBulk(w, ok, len(docs), itemErrs)
}

// GetDocument handles GET /collections/{name}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := s.registry.Get(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// DeleteDocuments handles POST /collections/{name}/documents/delete.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req DeleteDocumentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.limits.MaxBatchSize > 0 && len(req.IDs) > s.limits.MaxBatchSize {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("batch size %d exceeds maximum %d", len(req.IDs), s.limits.MaxBatchSize))
		return
	}

	ok, itemErrs, err := s.registry.TryDelete(r.Context(), chi.URLParam(r, "name"), req.IDs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeBulk(w, ok, len(req.IDs), itemErrs)
}

// SimpleQuery handles POST /query/simple.
func (s *Server) SimpleQuery(w http.ResponseWriter, r *http.Request) {
	var req SimpleQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts, err := s.queryOptions(req.QueryRequest)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if len(req.SearchFields) > 0 {
		opts = append(opts, request.WithSearchFields(req.SearchFields...))
	}

	criteria, err := request.NewSimple(req.Text, req.Indices, opts...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.runQuery(w, r, criteria)
}

// AdvancedQuery handles POST /query/advanced.
func (s *Server) AdvancedQuery(w http.ResponseWriter, r *http.Request) {
	var req AdvancedQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts, err := s.queryOptions(req.QueryRequest)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	filters := make([]request.FilterField, 0, len(req.Filters))
	for _, f := range req.Filters {
		c, ok := s.comparators.Lookup(f.Comparator)
		if !ok {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
				fmt.Sprintf("unknown comparator %q", f.Comparator))
			return
		}
		filters = append(filters, request.FilterField{Field: f.Field, Comparator: c, Value: f.Value})
	}
	opts = append(opts, request.WithFilters(filters...))

	criteria, err := request.NewAdvanced(req.Indices, opts...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.runQuery(w, r, criteria)
}

// ListComparators handles GET /comparators.
func (s *Server) ListComparators(w http.ResponseWriter, _ *http.Request) {
	all := s.comparators.All()
	out := make([]ComparatorResponse, 0, len(all))
	for _, c := range all {
		out = append(out, ComparatorResponse{
			Display: c.Display, Value: c.Value, Negated: c.IsNegated(), Range: c.IsRange(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:      string(report.Status),
		Checks:      checks,
		Collections: report.Collections,
		Scope:       s.registry.ScopeID(),
		Version:     version.Version,
		Commit:      version.Commit,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) queryOptions(q QueryRequest) ([]request.Option, error) {
	take := s.limits.DefaultTake
	if q.Take != nil {
		take = *q.Take
	}
	if s.limits.MaxTake > 0 && take > s.limits.MaxTake {
		return nil, domain.Validationf("take %d exceeds maximum %d", take, s.limits.MaxTake)
	}

	var opts []request.Option
	if take > 0 || q.Take != nil {
		opts = append(opts, request.WithTake(take))
	}
	if q.Skip != nil {
		opts = append(opts, request.WithSkip(*q.Skip))
	}
	for _, sd := range q.Sort {
		opts = append(opts, request.WithSort(request.SortField{
			Field: sd.Field, Ascending: sd.Ascending, Ordinal: sd.Ordinal,
		}))
	}
	if q.ReturnFields != nil {
		opts = append(opts, request.WithReturnFields(*q.ReturnFields...))
	}
	if len(q.Buckets) > 0 {
		opts = append(opts, request.WithBuckets(q.Buckets...))
		size := s.limits.BucketSize
		if q.BucketSize != nil {
			size = *q.BucketSize
		}
		if size != 0 {
			opts = append(opts, request.WithBucketSize(size))
		}
	}
	if res := s.resolverFor(q.Indices); res != nil {
		opts = append(opts, request.WithResolver(res))
	}
	return opts, nil
}

// resolverFor binds the document type of the first registered index.
func (s *Server) resolverFor(indices []string) *doctype.Bound {
	for _, idx := range indices {
		if b, err := s.registry.Resolver(idx); err == nil {
			return b
		}
	}
	return nil
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, criteria request.Criteria) {
	res, err := s.registry.Query(r.Context(), criteria)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits := make([]HitResponse, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, HitResponse{Index: h.Index, ID: h.ID, Source: h.Source})
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Total:   res.Total,
		TookMs:  res.Took.Milliseconds(),
		Hits:    hits,
		Buckets: res.Buckets,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := gojson.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeBulk(w http.ResponseWriter, ok bool, processed int, itemErrs []domain.ItemError) {
	status := http.StatusOK
	if !ok {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, BulkResponse{Succeeded: ok, Processed: processed, Errors: itemErrs})
}

// safeDomainMessage keeps validation and not-found detail, which only echo
// the request, and hides backend diagnostics.
func safeDomainMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateField),
		errors.Is(err, domain.ErrAlreadyExists):
		return err.Error()
	case errors.Is(err, domain.ErrBackend):
		return domain.ErrBackend.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// rawDocument reads the reserved fields of a posted document.
func rawDocument(raw gojson.RawMessage) (domain.RawDocument, error) {
	var head domain.DocumentBase
	if err := gojson.Unmarshal(raw, &head); err != nil {
		return domain.RawDocument{}, fmt.Errorf("not a JSON object: %w", err)
	}
	if head.ID == "" {
		return domain.RawDocument{}, errors.New("id is required")
	}
	if head.CollectionID == "" {
		return domain.RawDocument{}, errors.New("collectionId is required")
	}
	return domain.RawDocument{ID: head.ID, CollectionID: head.CollectionID, Body: raw}, nil
}

func schemaFromDefinitions(collection, docType string, defs []FieldDefinition) (*schema.Schema, error) {
	s := schema.New(collection, docType)
	for _, d := range defs {
		f, err := fieldFromDefinition(d)
		if err != nil {
			return nil, err
		}
		if err := s.AddField(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func fieldFromDefinition(d FieldDefinition) (field.Field, error) {
	var opts []field.Option
	if d.Boost != nil {
		opts = append(opts, field.WithBoost(*d.Boost))
	}
	if d.IsFilterable != nil {
		opts = append(opts, field.Filterable(*d.IsFilterable))
	}
	if d.IncludeInResults != nil {
		opts = append(opts, field.IncludeInResults(*d.IncludeInResults))
	}
	if d.Label != "" {
		opts = append(opts, field.WithLabel(d.Label))
	}
	if len(d.Fields) > 0 {
		children := make([]field.Field, 0, len(d.Fields))
		for _, c := range d.Fields {
			child, err := fieldFromDefinition(c)
			if err != nil {
				return field.Field{}, err
			}
			children = append(children, child)
		}
		opts = append(opts, field.WithFields(children...))
	}
	f, err := field.New(d.Name, field.Type(d.Type), opts...)
	if err != nil {
		return field.Field{}, fmt.Errorf("field %q: %w", d.Name, err)
	}
	return f, nil
}

func fieldToDefinition(f field.Field) FieldDefinition {
	d := FieldDefinition{
		Name:             f.Name(),
		Type:             string(f.Type()),
		Boost:            f.BoostPtr(),
		IsFilterable:     f.IsFilterablePtr(),
		IncludeInResults: f.IncludeInResultsPtr(),
		Label:            f.Label(),
	}
	for _, c := range f.Fields() {
		d.Fields = append(d.Fields, fieldToDefinition(c))
	}
	return d
}

func collectionToResponse(c *domcol.Collection) CollectionResponse {
	fields := make([]FieldDefinition, 0, c.Schema().Len())
	for _, f := range c.Schema().Fields() {
		fields = append(fields, fieldToDefinition(f))
	}
	return CollectionResponse{
		Name:                         c.Name(),
		DocumentType:                 c.DocumentType(),
		PrimaryShards:                c.PrimaryShards(),
		ReplicaShards:                c.ReplicaShards(),
		ForceRefreshOnDocumentCommit: c.ForceRefreshOnDocumentCommit(),
		EagerlyPersistSchema:         c.EagerlyPersistSchema(),
		SchemaPersisted:              c.SchemaPersisted(),
		Fields:                       fields,
	}
}
