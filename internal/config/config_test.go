package config

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Cluster:  ClusterConfig{ScopeID: "abc123"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver redis, got %q", cfg.Database.Driver)
	}
	if cfg.Query.DefaultTake != 10 || cfg.Query.BucketSize != 10 {
		t.Errorf("unexpected query defaults: %+v", cfg.Query)
	}
	if cfg.Query.CacheSize != doctype.DefaultCacheSize {
		t.Errorf("expected cache size %d, got %d", doctype.DefaultCacheSize, cfg.Query.CacheSize)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected shutdown 10s, got %d", cfg.HTTP.ShutdownSec)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing addrs")
	}
	if err.Error() != "database.addrs is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "valkey"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestValidate_Scope(t *testing.T) {
	cfg := validConfig()
	cfg.Cluster.ScopeID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing scope")
	}

	cfg.Cluster.CreateScope = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with create_scope: %v", err)
	}

	cfg.Cluster.ScopeID = "ABC"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for uppercase scope")
	}
}

func TestValidate_TakeBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Query.DefaultTake = 50
	cfg.Query.MaxTake = 20

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default take exceeds max take")
	}
}

func TestValidate_LogFormat(t *testing.T) {
	for format, ok := range map[string]bool{"": true, "json": true, "console": true, "logfmt": false} {
		cfg := validConfig()
		cfg.Logging.Format = format
		if err := cfg.Validate(); (err == nil) != ok {
			t.Errorf("format %q: err = %v", format, err)
		}
	}
}

func TestDescriptors_LinksNestedTypes(t *testing.T) {
	cfg := validConfig()
	cfg.DocumentTypes = []DocumentTypeConfig{
		{Name: "sample.Order", Fields: []FieldConfig{
			{Name: "orderId", Kind: "numeric"},
			{Name: "customerFirstName", Kind: "TEXT"},
			{Name: "products", Kind: "object", Array: true, Type: "sample.Product"},
		}},
		{Name: "sample.Product", Fields: []FieldConfig{
			{Name: "price", Kind: "numeric"},
		}},
	}

	ds, err := cfg.Descriptors()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(ds))
	}
	res, ok := ds[0].Resolve("products.price")
	if !ok {
		t.Fatal("expected products.price to resolve")
	}
	if res.Kind != doctype.Numeric {
		t.Errorf("expected numeric, got %q", res.Kind)
	}
}

func TestDescriptors_Errors(t *testing.T) {
	tests := []struct {
		name  string
		types []DocumentTypeConfig
		want  string
	}{
		{
			name:  "missing name",
			types: []DocumentTypeConfig{{}},
			want:  "name is required",
		},
		{
			name:  "duplicate",
			types: []DocumentTypeConfig{{Name: "a"}, {Name: "a"}},
			want:  "declared twice",
		},
		{
			name:  "unknown kind",
			types: []DocumentTypeConfig{{Name: "a", Fields: []FieldConfig{{Name: "x", Kind: "vector"}}}},
			want:  "unknown kind",
		},
		{
			name:  "unknown nested type",
			types: []DocumentTypeConfig{{Name: "a", Fields: []FieldConfig{{Name: "x", Kind: "object", Type: "b"}}}},
			want:  "unknown type",
		},
		{
			name:  "dotted property",
			types: []DocumentTypeConfig{{Name: "a", Fields: []FieldConfig{{Name: "x.y", Kind: "text"}}}},
			want:  "invalid property name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.DocumentTypes = tt.types

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SQEE_TEST_ADDR", "redis:6380")

	cfg, err := Parse([]byte(`
http:
  port: 8080
database:
  addrs: ["${SQEE_TEST_ADDR}"]
  password: "${SQEE_TEST_UNSET:-secret}"
cluster:
  scope_id: abc123
document_types:
  - name: sample.Order
    fields:
      - { name: orderId, kind: numeric }
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Addrs[0] != "redis:6380" {
		t.Errorf("expected expanded addr, got %q", cfg.Database.Addrs[0])
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("expected default password, got %q", cfg.Database.Password)
	}
	if len(cfg.DocumentTypes) != 1 || len(cfg.DocumentTypes[0].Fields) != 1 {
		t.Errorf("unexpected document types: %+v", cfg.DocumentTypes)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\n")); err == nil {
		t.Fatal("expected validation error")
	}
}
