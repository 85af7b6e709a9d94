// Package cluster is the scoped collection registry: it provisions indices,
// routes document writes to registered collections and fans queries out.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/sqee/internal/domain"
	domcol "github.com/kailas-cloud/sqee/internal/domain/collection"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/request"
	"github.com/kailas-cloud/sqee/internal/domain/search/result"
	"github.com/kailas-cloud/sqee/internal/logger"
	"github.com/kailas-cloud/sqee/internal/metrics"
)

// Operation labels for metrics.
const (
	opRefresh       = "refresh"
	opAddCollection = "add_collection"
	opDelCollection = "delete_collection"
	opUpdateSchema  = "update_schema"
	opCommit        = "commit"
	opCommitBatch   = "commit_batch"
	opDelete        = "delete"
	opQuery         = "query"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Outcome is the result of TryAddCollection.
type Outcome int

// Provisioning outcomes.
const (
	Failed Outcome = iota
	Created
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "failed"
	}
}

// Deps are the collaborators of a Cluster. Pinger and Logger are optional.
type Deps struct {
	Collections CollectionRepository
	Documents   DocumentRepository
	Search      SearchRepository
	Pinger      Pinger
	Types       TypeRegistry
	Logger      *zap.Logger
}

// QueryResult is delivered once by QueryAsync.
type QueryResult struct {
	Results *result.Results
	Err     error
}

// Cluster holds the collections of one scope. Safe for concurrent use.
type Cluster struct {
	scope       string
	collections CollectionRepository
	documents   DocumentRepository
	search      SearchRepository
	pinger      Pinger
	types       TypeRegistry
	logger      *zap.Logger

	mu    sync.RWMutex
	cache map[string]*domcol.Collection
	locks nameLocks
}

// New creates a registry for scopeID and reconciles it with the backend.
func New(ctx context.Context, scopeID string, deps Deps) (*Cluster, error) {
	if err := validateScope(scopeID); err != nil {
		return nil, err
	}
	if deps.Collections == nil || deps.Documents == nil || deps.Search == nil || deps.Types == nil {
		return nil, errors.New("cluster: repositories and type registry are required")
	}

	c := &Cluster{
		scope:       scopeID,
		collections: deps.Collections,
		documents:   deps.Documents,
		search:      deps.Search,
		pinger:      deps.Pinger,
		types:       deps.Types,
		logger:      logger.ForScope(deps.Logger, scopeID),
		cache:       make(map[string]*domcol.Collection),
	}
	if err := c.Refresh(ctx, true); err != nil {
		return nil, err
	}
	return c, nil
}

// NewScopeID returns a fresh 12-character scope identifier.
func NewScopeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func validateScope(scope string) error {
	switch {
	case strings.TrimSpace(scope) == "":
		return domain.Validationf("scope id is required")
	case scope != strings.ToLower(scope):
		return domain.Validationf("scope id %q must be lowercase", scope)
	case strings.ContainsAny(scope, " :*"):
		return domain.Validationf("scope id %q contains reserved characters", scope)
	}
	return nil
}

// ScopeID returns the registry scope.
func (c *Cluster) ScopeID() string { return c.scope }

// Refresh reconciles the registry with the live backend indices of the scope.
// Entries missing on the backend are dropped; unknown indices are loaded, and
// with force every index is reloaded.
func (c *Cluster) Refresh(ctx context.Context, force bool) error {
	start := time.Now()
	names, err := c.collections.ListNames(ctx, c.scope)
	if err != nil {
		c.logger.Error("list scoped indices failed", zap.Error(err))
		metrics.ObserveOperation(opRefresh, outcomeFailed, start)
		return fmt.Errorf("refresh collections: %w", err)
	}

	live := make(map[string]struct{}, len(names))
	for _, n := range names {
		live[n] = struct{}{}
	}

	c.mu.RLock()
	var fetch []string
	for _, n := range names {
		if _, ok := c.cache[n]; force || !ok {
			fetch = append(fetch, n)
		}
	}
	c.mu.RUnlock()

	var loaded []*domcol.Collection
	if len(fetch) > 0 {
		loaded, err = c.collections.GetMulti(ctx, fetch)
		if err != nil {
			c.logger.Error("load index metadata failed", zap.Error(err))
			metrics.ObserveOperation(opRefresh, outcomeFailed, start)
			return fmt.Errorf("refresh collections: %w", err)
		}
	}
	for _, col := range loaded {
		if !col.SchemaPersisted() {
			c.logger.Warn("index has no schema metadata, registered with an empty schema",
				logger.Collection(col.Name()))
		}
		col.Schema().Bind(c.types)
	}

	c.mu.Lock()
	dropped := 0
	for name := range c.cache {
		if _, ok := live[name]; !ok {
			delete(c.cache, name)
			dropped++
		}
	}
	for _, col := range loaded {
		c.cache[col.Name()] = col
	}
	size := len(c.cache)
	c.mu.Unlock()

	metrics.CollectionsCached.WithLabelValues(c.scope).Set(float64(size))
	metrics.ObserveOperation(opRefresh, outcomeOK, start)
	c.logger.Info("collections reconciled",
		zap.Int("live", len(names)),
		zap.Int("loaded", len(loaded)),
		zap.Int("dropped", dropped),
		zap.Bool("force", force),
	)
	return nil
}

// ScopedCollectionNames lists the live backend indices of the scope,
// bypassing the local registry.
func (c *Cluster) ScopedCollectionNames(ctx context.Context) ([]string, error) {
	names, err := c.collections.ListNames(ctx, c.scope)
	if err != nil {
		return nil, fmt.Errorf("list scoped collections: %w", err)
	}
	return names, nil
}

// Collection returns a registered collection; name may omit the scope prefix.
func (c *Cluster) Collection(name string) (*domcol.Collection, bool) {
	return c.lookup(domcol.AddScopeToName(c.scope, name))
}

// Collections returns the registered collections ordered by name.
func (c *Cluster) Collections() []*domcol.Collection {
	c.mu.RLock()
	out := make([]*domcol.Collection, 0, len(c.cache))
	for _, col := range c.cache {
		out = append(out, col)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Resolver binds the document type of a registered collection for criteria.
func (c *Cluster) Resolver(name string) (*doctype.Bound, error) {
	col, ok := c.Collection(name)
	if !ok {
		return nil, domain.NotFoundf("collection %s", name)
	}
	return c.types.For(col.DocumentType())
}

// TryAddCollection creates the index of cfg under the scoped name. A name
// already known locally or on the backend yields AlreadyExists; any failure
// yields Failed with the error and leaves the registry unchanged.
func (c *Cluster) TryAddCollection(ctx context.Context, cfg *domcol.Config) (Outcome, *domcol.Collection, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		metrics.ObserveOperation(opAddCollection, Failed.String(), start)
		return Failed, nil, err
	}

	name := cfg.ScopedName(c.scope)
	unlock := c.locks.lock(name)
	defer unlock()

	if col, ok := c.lookup(name); ok {
		metrics.ObserveOperation(opAddCollection, AlreadyExists.String(), start)
		return AlreadyExists, col, nil
	}

	outcome, col, err := c.addCollection(ctx, name, cfg)
	metrics.ObserveOperation(opAddCollection, outcome.String(), start)
	return outcome, col, err
}

func (c *Cluster) addCollection(ctx context.Context, name string, cfg *domcol.Config) (Outcome, *domcol.Collection, error) {
	log := c.logger.With(logger.Collection(name), zap.String("document_type", cfg.DocumentType))

	d, ok := c.types.Lookup(cfg.DocumentType)
	if !ok {
		return Failed, nil, domain.NotFoundf("document type %q is not registered", cfg.DocumentType)
	}

	// without an explicit schema every property of the type gets default fields
	var s *schema.Schema
	if cfg.Schema != nil {
		s = schema.Reconstruct(name, cfg.DocumentType, cfg.Schema.Fields())
	} else {
		derived, err := schema.Derive(name, d)
		if err != nil {
			return Failed, nil, err
		}
		s = derived
	}
	s.Bind(c.types)
	col := domcol.New(name, cfg, s)

	err := c.collections.Create(ctx, col, d)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		existing, getErr := c.collections.Get(ctx, name)
		if getErr != nil {
			log.Error("load existing index failed", zap.Error(getErr))
			return Failed, nil, getErr
		}
		existing.Schema().Bind(c.types)
		c.put(existing)
		log.Info("index already exists on the backend")
		return AlreadyExists, existing, nil
	case err != nil:
		log.Error("create index failed", zap.Error(err))
		return Failed, nil, err
	}

	if err := c.collections.Alias(ctx, cfg.DocumentType, name); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			log.Error("alias index failed", zap.Error(err))
			if delErr := c.collections.Delete(ctx, name); delErr != nil {
				return Failed, nil, errors.Join(err, fmt.Errorf("rollback index %s: %w", name, delErr))
			}
			return Failed, nil, err
		}
		log.Info("document type alias already exists", zap.String("alias", cfg.DocumentType))
	}

	if !cfg.EagerlyPersistSchema {
		col = domcol.Reconstruct(name, cfg.DocumentType, cfg.Settings, nil)
	}
	c.put(col)
	log.Info("collection created",
		zap.Int("fields", s.Len()),
		zap.Int("primary_shards", cfg.PrimaryShards),
		zap.Int("replica_shards", cfg.ReplicaShards),
		zap.Bool("eager_schema", cfg.EagerlyPersistSchema),
	)
	return Created, col, nil
}

// TryDeleteCollection removes a registered collection. With deleteOnServer the
// index and its documents are dropped first; otherwise only the local entry
// goes and the next reconciliation brings it back.
func (c *Cluster) TryDeleteCollection(ctx context.Context, name string, deleteOnServer bool) (bool, error) {
	start := time.Now()
	name = domcol.AddScopeToName(c.scope, name)
	unlock := c.locks.lock(name)
	defer unlock()

	if _, ok := c.lookup(name); !ok {
		metrics.ObserveOperation(opDelCollection, outcomeFailed, start)
		return false, domain.NotFoundf("collection %s", name)
	}
	log := c.logger.With(logger.Collection(name), zap.Bool("server", deleteOnServer))

	if deleteOnServer {
		if err := c.collections.Delete(ctx, name); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.forget(name)
			}
			log.Error("delete index failed", zap.Error(err))
			metrics.ObserveOperation(opDelCollection, outcomeFailed, start)
			return false, err
		}
	}

	c.forget(name)
	log.Info("collection deleted")
	metrics.ObserveOperation(opDelCollection, outcomeOK, start)
	return true, nil
}

// TryUpdateCollectionSchema replaces the persisted schema of a collection and
// swaps it into the registry.
func (c *Cluster) TryUpdateCollectionSchema(ctx context.Context, name string, s *schema.Schema) (bool, error) {
	start := time.Now()
	if s == nil {
		metrics.ObserveOperation(opUpdateSchema, outcomeFailed, start)
		return false, domain.Validationf("schema is required")
	}
	name = domcol.AddScopeToName(c.scope, name)
	unlock := c.locks.lock(name)
	defer unlock()

	col, ok := c.lookup(name)
	if !ok {
		metrics.ObserveOperation(opUpdateSchema, outcomeFailed, start)
		return false, domain.NotFoundf("collection %s", name)
	}

	docType := col.DocumentType()
	if docType == "" {
		docType = s.DocumentType()
	}
	next := schema.Reconstruct(name, docType, s.Fields()).Bind(c.types)
	if err := c.collections.SaveSchema(ctx, name, next); err != nil {
		c.logger.Error("save schema failed", logger.Collection(name), zap.Error(err))
		metrics.ObserveOperation(opUpdateSchema, outcomeFailed, start)
		return false, err
	}

	c.put(col.WithSchema(next))
	c.logger.Info("collection schema updated", logger.Collection(name), zap.Int("fields", next.Len()))
	metrics.ObserveOperation(opUpdateSchema, outcomeOK, start)
	return true, nil
}

// TryCommit indexes one document into the collection named by its
// collection id. A rejected document is returned as an error.
func (c *Cluster) TryCommit(ctx context.Context, doc domain.Document) (bool, error) {
	start := time.Now()
	col, err := c.target(doc)
	if err != nil {
		metrics.ObserveOperation(opCommit, outcomeFailed, start)
		return false, err
	}

	itemErrs, err := c.documents.Put(ctx, []domain.Document{doc})
	if err != nil {
		c.logger.Error("commit document failed",
			logger.Collection(col.Name()), zap.String("id", doc.DocumentID()), zap.Error(err))
		metrics.ObserveOperation(opCommit, outcomeFailed, start)
		return false, err
	}
	if len(itemErrs) > 0 {
		ie := itemErrs[0]
		c.logger.Error("document rejected",
			logger.Collection(ie.Collection), zap.String("id", ie.DocumentID), zap.String("reason", ie.Reason))
		metrics.BulkItemErrorsTotal.WithLabelValues(opCommit).Inc()
		metrics.ObserveOperation(opCommit, outcomeFailed, start)
		return false, domain.NewBackendError(opCommit, ie)
	}

	c.recordRefresh(opCommit, col.ForceRefreshOnDocumentCommit())
	metrics.ObserveOperation(opCommit, outcomeOK, start)
	return true, nil
}

// TryCommitBatch indexes documents of any registered collections in one
// round-trip. Every document must target a registered collection; per-document
// rejections come back as item errors with a false result.
func (c *Cluster) TryCommitBatch(ctx context.Context, docs []domain.Document) (bool, []domain.ItemError, error) {
	if len(docs) == 0 {
		return true, nil, nil
	}
	start := time.Now()

	force := false
	for _, doc := range docs {
		col, err := c.target(doc)
		if err != nil {
			metrics.ObserveOperation(opCommitBatch, outcomeFailed, start)
			return false, nil, err
		}
		force = force || col.ForceRefreshOnDocumentCommit()
	}

	itemErrs, err := c.documents.Put(ctx, docs)
	if err != nil {
		c.logger.Error("bulk commit failed", zap.Int("documents", len(docs)), zap.Error(err))
		metrics.ObserveOperation(opCommitBatch, outcomeFailed, start)
		return false, nil, err
	}
	c.recordItemErrors(opCommitBatch, itemErrs, len(docs))
	c.recordRefresh(opCommitBatch, force)
	metrics.ObserveOperation(opCommitBatch, outcomeOK, start)
	return len(itemErrs) == 0, itemErrs, nil
}

// TryDelete removes documents of one collection by id. Unknown ids are not
// errors.
func (c *Cluster) TryDelete(ctx context.Context, collection string, ids []string) (bool, []domain.ItemError, error) {
	start := time.Now()
	name := domcol.AddScopeToName(c.scope, collection)
	col, ok := c.lookup(name)
	if !ok {
		metrics.ObserveOperation(opDelete, outcomeFailed, start)
		return false, nil, domain.NotFoundf("collection %s", name)
	}
	if len(ids) == 0 {
		return true, nil, nil
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			metrics.ObserveOperation(opDelete, outcomeFailed, start)
			return false, nil, domain.Validationf("document id is required")
		}
	}

	itemErrs, err := c.documents.Delete(ctx, name, ids)
	if err != nil {
		c.logger.Error("bulk delete failed", logger.Collection(name), zap.Int("documents", len(ids)), zap.Error(err))
		metrics.ObserveOperation(opDelete, outcomeFailed, start)
		return false, nil, err
	}
	c.recordItemErrors(opDelete, itemErrs, len(ids))
	c.recordRefresh(opDelete, col.ForceRefreshOnDocumentCommit())
	metrics.ObserveOperation(opDelete, outcomeOK, start)
	return len(itemErrs) == 0, itemErrs, nil
}

// Get returns the stored JSON of one document.
func (c *Cluster) Get(ctx context.Context, collection, id string) ([]byte, error) {
	name := domcol.AddScopeToName(c.scope, collection)
	if _, ok := c.lookup(name); !ok {
		return nil, domain.NotFoundf("collection %s", name)
	}
	return c.documents.Get(ctx, name, id)
}

// Query runs criteria against every targeted index concurrently. Criteria
// without a resolver resolve through the document type of the first
// registered target. A query over several indices is paged after the merge:
// each index returns its leading skip+take hits, which are ordered by sort
// values (index order when unsorted) before skip and take apply.
func (c *Cluster) Query(ctx context.Context, criteria request.Criteria) (*result.Results, error) {
	start := time.Now()
	if criteria == nil {
		return nil, domain.Validationf("criteria are required")
	}
	req, err := c.bindDefault(criteria).Request()
	if err != nil {
		metrics.ObserveOperation(opQuery, outcomeFailed, start)
		return nil, err
	}
	metrics.QueryIndices.Observe(float64(len(req.Indices)))

	perIndex := req
	if len(req.Indices) > 1 {
		perIndex = req.Window()
	}
	parts := make([]*result.Results, len(req.Indices))
	g, gctx := errgroup.WithContext(ctx)
	for i, index := range req.Indices {
		g.Go(func() error {
			r, err := c.search.Search(gctx, index, perIndex)
			if err != nil {
				return err
			}
			parts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("query failed", zap.Strings("indices", req.Indices), zap.Error(err))
		metrics.ObserveOperation(opQuery, outcomeFailed, start)
		return nil, err
	}

	metrics.ObserveOperation(opQuery, outcomeOK, start)
	if len(parts) == 1 {
		return result.Merge(parts...), nil
	}
	return result.Page(req.Ascending(), req.Offset, req.Limit, parts...), nil
}

// bindDefault binds criteria that carry no resolver to the document type of
// the first registered target index.
func (c *Cluster) bindDefault(criteria request.Criteria) request.Criteria {
	b, ok := criteria.(request.Bindable)
	if !ok || b.Resolved() {
		return criteria
	}
	for _, index := range criteria.Indices() {
		r, err := c.Resolver(index)
		if err != nil {
			continue
		}
		c.logger.Debug("resolving query fields", zap.String("type", r.TypeName()), logger.Collection(index))
		return b.Bind(r)
	}
	return criteria
}

// QueryAsync runs Query on a goroutine. The channel yields exactly one value.
func (c *Cluster) QueryAsync(ctx context.Context, criteria request.Criteria) <-chan QueryResult {
	ch := make(chan QueryResult, 1)
	go func() {
		defer close(ch)
		r, err := c.Query(ctx, criteria)
		ch <- QueryResult{Results: r, Err: err}
	}()
	return ch
}

// CanPing makes a single reachability attempt.
func (c *Cluster) CanPing(ctx context.Context) bool {
	if c.pinger == nil {
		return false
	}
	if err := c.pinger.Ping(ctx); err != nil {
		c.logger.Warn("backend ping failed", zap.Error(err))
		return false
	}
	return true
}

// Ping reports backend reachability as an error.
func (c *Cluster) Ping(ctx context.Context) error {
	if c.pinger == nil {
		return errors.New("cluster: no pinger configured")
	}
	return c.pinger.Ping(ctx)
}

func (c *Cluster) target(doc domain.Document) (*domcol.Collection, error) {
	if doc == nil {
		return nil, domain.Validationf("document is required")
	}
	if strings.TrimSpace(doc.DocumentID()) == "" {
		return nil, domain.Validationf("document id is required")
	}
	col, ok := c.lookup(doc.DocumentCollectionID())
	if !ok {
		return nil, domain.NotFoundf("collection %q is not registered", doc.DocumentCollectionID())
	}
	return col, nil
}

func (c *Cluster) lookup(name string) (*domcol.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.cache[name]
	return col, ok
}

func (c *Cluster) put(col *domcol.Collection) {
	c.mu.Lock()
	c.cache[col.Name()] = col
	size := len(c.cache)
	c.mu.Unlock()
	metrics.CollectionsCached.WithLabelValues(c.scope).Set(float64(size))
}

func (c *Cluster) forget(name string) {
	c.mu.Lock()
	delete(c.cache, name)
	size := len(c.cache)
	c.mu.Unlock()
	metrics.CollectionsCached.WithLabelValues(c.scope).Set(float64(size))
}

// Indexing is synchronous on the backend, so a forced refresh is only recorded.
func (c *Cluster) recordRefresh(op string, force bool) {
	if !force {
		return
	}
	metrics.ForcedRefreshTotal.WithLabelValues(op).Inc()
	c.logger.Debug("forced refresh requested", zap.String("op", op))
}

func (c *Cluster) recordItemErrors(op string, itemErrs []domain.ItemError, total int) {
	if len(itemErrs) == 0 {
		return
	}
	metrics.BulkItemErrorsTotal.WithLabelValues(op).Add(float64(len(itemErrs)))
	c.logger.Warn("bulk operation had item errors",
		zap.String("op", op),
		zap.Int("failed", len(itemErrs)),
		zap.Int("total", total),
		zap.String("first_reason", itemErrs[0].Reason),
	)
}
