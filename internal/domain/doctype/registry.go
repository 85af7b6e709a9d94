package doctype

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kailas-cloud/sqee/internal/domain"
)

// DefaultCacheSize bounds the resolved-path cache.
const DefaultCacheSize = 1024

// Registry holds descriptors registered by their owners at startup.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Descriptor
	cache *lru.Cache
}

// NewRegistry creates an empty registry with a resolution cache of the given size.
func NewRegistry(cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolution cache: %w", err)
	}
	return &Registry{types: make(map[string]*Descriptor), cache: c}, nil
}

// Register adds a descriptor. Names are unique, case-insensitively.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	key := strings.ToLower(d.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[key]; ok {
		return fmt.Errorf("document type %q: %w", d.Name, domain.ErrAlreadyExists)
	}
	r.types[key] = d
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[strings.ToLower(name)]
	return d, ok
}

// Get is Lookup returning ErrNotFound for unknown types.
func (r *Registry) Get(name string) (*Descriptor, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, domain.NotFoundf("document type %q is not registered", name)
	}
	return d, nil
}

// Names lists registered type names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for _, d := range r.types {
		out = append(out, d.Name)
	}
	return out
}

type cached struct {
	res Resolution
	ok  bool
}

// Resolve resolves a dotted path of the named type, memoized.
func (r *Registry) Resolve(typeName, path string) (Resolution, bool) {
	key := strings.ToLower(typeName) + "\x00" + strings.ToLower(path)
	if v, ok := r.cache.Get(key); ok {
		c := v.(cached)
		return c.res, c.ok
	}
	d, ok := r.Lookup(typeName)
	if !ok {
		return Resolution{}, false
	}
	res, ok := d.Resolve(path)
	r.cache.Add(key, cached{res: res, ok: ok})
	return res, ok
}

// Canonical returns the suffix-stripped canonical name of path.
// Unresolvable paths come back suffix-stripped but otherwise verbatim.
func (r *Registry) Canonical(typeName, path string) string {
	if res, ok := r.Resolve(typeName, path); ok {
		return res.Path
	}
	stripped, _ := StripSuffix(path)
	return stripped
}

// For binds the registry to one document type.
func (r *Registry) For(typeName string) (*Bound, error) {
	if _, err := r.Get(typeName); err != nil {
		return nil, err
	}
	return &Bound{reg: r, typeName: typeName}, nil
}

// Bound resolves paths of a single document type.
type Bound struct {
	reg      *Registry
	typeName string
}

// TypeName returns the bound type name.
func (b *Bound) TypeName() string { return b.typeName }

// Resolve resolves path against the bound type.
func (b *Bound) Resolve(path string) (Resolution, bool) {
	return b.reg.Resolve(b.typeName, path)
}
