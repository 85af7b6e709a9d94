package collection

import (
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/collection/schema"
)

// Defaults for a new collection.
const (
	DefaultPrimaryShards = 1
	DefaultReplicaShards = 2
)

// Settings are the index-level settings of a collection.
type Settings struct {
	PrimaryShards                int  `json:"primaryShards"`
	ReplicaShards                int  `json:"replicaShards"`
	ForceRefreshOnDocumentCommit bool `json:"forceRefreshOnDocumentCommit"`
	EagerlyPersistSchema         bool `json:"eagerlyPersistSchema"`
}

// DefaultSettings returns 1 primary, 2 replicas, deferred refresh, eager persistence.
func DefaultSettings() Settings {
	return Settings{
		PrimaryShards:        DefaultPrimaryShards,
		ReplicaShards:        DefaultReplicaShards,
		EagerlyPersistSchema: true,
	}
}

// Config describes a collection to provision.
type Config struct {
	Name         string
	DocumentType string
	Settings
	// Schema is persisted at creation when EagerlyPersistSchema is set.
	Schema *schema.Schema
}

// ConfigOption customizes a Config.
type ConfigOption func(*Config)

// WithShards sets primary and replica shard counts.
func WithShards(primary, replica int) ConfigOption {
	return func(c *Config) {
		c.PrimaryShards = primary
		c.ReplicaShards = replica
	}
}

// WithForceRefresh makes commits visible immediately.
func WithForceRefresh(v bool) ConfigOption {
	return func(c *Config) { c.ForceRefreshOnDocumentCommit = v }
}

// WithEagerSchema toggles persisting the configured schema at creation.
func WithEagerSchema(v bool) ConfigOption {
	return func(c *Config) { c.EagerlyPersistSchema = v }
}

// WithSchema sets the initial schema.
func WithSchema(s *schema.Schema) ConfigOption {
	return func(c *Config) { c.Schema = s }
}

// NewConfig builds a Config with default settings.
func NewConfig(name, documentType string, opts ...ConfigOption) *Config {
	c := &Config{Name: name, DocumentType: documentType, Settings: DefaultSettings()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate checks the configuration before any backend call.
func (c *Config) Validate() error {
	if c == nil {
		return domain.Validationf("collection config is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return domain.Validationf("collection name is required")
	}
	if c.Name != strings.ToLower(c.Name) {
		return domain.Validationf("collection name %q must be lowercase", c.Name)
	}
	if strings.ContainsAny(c.Name, " :*") {
		return domain.Validationf("collection name %q contains reserved characters", c.Name)
	}
	if strings.TrimSpace(c.DocumentType) == "" {
		return domain.Validationf("document type is required")
	}
	if c.PrimaryShards < 1 {
		return domain.Validationf("primary shards must be at least 1")
	}
	if c.ReplicaShards < 0 {
		return domain.Validationf("replica shards must not be negative")
	}
	return nil
}

// ScopedName prefixes the name with scope and the name separator unless it
// already starts with scope.
func (c *Config) ScopedName(scope string) string {
	return AddScopeToName(scope, c.Name)
}

// AddScopeToName applies the scope prefix rule to name.
func AddScopeToName(scope, name string) string {
	if scope == "" || strings.HasPrefix(name, scope) {
		return name
	}
	return scope + domain.NameSeparator + name
}

// Collection binds a schema to index-level settings.
type Collection struct {
	name            string
	documentType    string
	settings        Settings
	schema          *schema.Schema
	schemaPersisted bool
}

// New creates a collection from a validated config under its final name.
func New(name string, cfg *Config, s *schema.Schema) *Collection {
	if s == nil {
		s = schema.New(name, cfg.DocumentType)
	}
	return &Collection{
		name: name, documentType: cfg.DocumentType,
		settings: cfg.Settings, schema: s, schemaPersisted: true,
	}
}

// Reconstruct hydrates a collection from backend metadata.
// A nil schema marks an index without persisted schema metadata.
func Reconstruct(name, documentType string, settings Settings, s *schema.Schema) *Collection {
	c := &Collection{name: name, documentType: documentType, settings: settings, schema: s, schemaPersisted: s != nil}
	if s == nil {
		c.schema = schema.New(name, documentType)
	}
	if c.documentType == "" {
		c.documentType = c.schema.DocumentType()
	}
	return c
}

// Name returns the collection (index) name.
func (c *Collection) Name() string { return c.name }

// DocumentType returns the document type identifier.
func (c *Collection) DocumentType() string { return c.documentType }

// Settings returns the index-level settings.
func (c *Collection) Settings() Settings { return c.settings }

// PrimaryShards returns the primary shard count.
func (c *Collection) PrimaryShards() int { return c.settings.PrimaryShards }

// ReplicaShards returns the replica shard count.
func (c *Collection) ReplicaShards() int { return c.settings.ReplicaShards }

// ForceRefreshOnDocumentCommit reports the commit visibility policy.
func (c *Collection) ForceRefreshOnDocumentCommit() bool {
	return c.settings.ForceRefreshOnDocumentCommit
}

// EagerlyPersistSchema reports whether the schema was persisted at creation.
func (c *Collection) EagerlyPersistSchema() bool { return c.settings.EagerlyPersistSchema }

// Schema returns the owned schema.
func (c *Collection) Schema() *schema.Schema { return c.schema }

// SchemaPersisted is false for indices found without schema metadata.
func (c *Collection) SchemaPersisted() bool { return c.schemaPersisted }

// WithSchema returns a copy owning s.
func (c *Collection) WithSchema(s *schema.Schema) *Collection {
	cp := *c
	cp.schema = s
	cp.schemaPersisted = true
	if cp.documentType == "" {
		cp.documentType = s.DocumentType()
	}
	return &cp
}
