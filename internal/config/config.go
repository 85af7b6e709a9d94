package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/sqee/internal/domain/doctype"
)

// Config holds the sqee server configuration.
type Config struct {
	HTTP          HTTPConfig           `yaml:"http"`
	Database      DatabaseConfig       `yaml:"database"`
	Cluster       ClusterConfig        `yaml:"cluster"`
	Query         QueryConfig          `yaml:"query"`
	Auth          AuthConfig           `yaml:"auth"`
	Logging       LoggingConfig        `yaml:"logging"`
	DocumentTypes []DocumentTypeConfig `yaml:"document_types"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds backend connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis (default)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Standalone       bool     `yaml:"standalone"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ClusterConfig selects the registry scope.
type ClusterConfig struct {
	ScopeID string `yaml:"scope_id"`
	// CreateScope generates a fresh scope id when ScopeID is empty.
	CreateScope bool `yaml:"create_scope"`
}

// QueryConfig holds query and bulk limits.
type QueryConfig struct {
	DefaultTake  int `yaml:"default_take"`
	MaxTake      int `yaml:"max_take"`
	BucketSize   int `yaml:"bucket_size"`
	CacheSize    int `yaml:"cache_size"` // path resolution cache entries
	MaxBatchSize int `yaml:"max_batch_size"`
}

// DocumentTypeConfig declares one document type.
type DocumentTypeConfig struct {
	Name   string        `yaml:"name"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig declares one property. Type names another declared document
// type and is required for object fields.
type FieldConfig struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Array bool   `yaml:"array"`
	Type  string `yaml:"type"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Query.DefaultTake <= 0 {
		c.Query.DefaultTake = 10
	}
	if c.Query.MaxTake <= 0 {
		c.Query.MaxTake = 1000
	}
	if c.Query.BucketSize <= 0 {
		c.Query.BucketSize = 10
	}
	if c.Query.CacheSize <= 0 {
		c.Query.CacheSize = doctype.DefaultCacheSize
	}
	if c.Query.MaxBatchSize <= 0 {
		c.Query.MaxBatchSize = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Driver != "redis" {
		return fmt.Errorf("database.driver must be \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Cluster.ScopeID == "" && !c.Cluster.CreateScope {
		return fmt.Errorf("cluster.scope_id is required unless cluster.create_scope is set")
	}
	if c.Cluster.ScopeID != strings.ToLower(c.Cluster.ScopeID) {
		return fmt.Errorf("cluster.scope_id must be lowercase, got %q", c.Cluster.ScopeID)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}
	if c.Query.DefaultTake > c.Query.MaxTake {
		return fmt.Errorf("query.default_take (%d) exceeds query.max_take (%d)", c.Query.DefaultTake, c.Query.MaxTake)
	}
	if _, err := c.Descriptors(); err != nil {
		return err
	}
	return nil
}

// Descriptors builds the declared document types, linking object fields to
// their nested types by name.
func (c *Config) Descriptors() ([]*doctype.Descriptor, error) {
	byName := make(map[string]*doctype.Descriptor, len(c.DocumentTypes))
	out := make([]*doctype.Descriptor, 0, len(c.DocumentTypes))
	for _, t := range c.DocumentTypes {
		if t.Name == "" {
			return nil, fmt.Errorf("document_types: name is required")
		}
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("document_types: %q declared twice", t.Name)
		}
		d := &doctype.Descriptor{Name: t.Name}
		byName[t.Name] = d
		out = append(out, d)
	}

	for i, t := range c.DocumentTypes {
		d := out[i]
		for _, f := range t.Fields {
			kind := doctype.Kind(strings.ToLower(f.Kind))
			if !kind.IsValid() {
				return nil, fmt.Errorf("document_types.%s.%s: unknown kind %q", t.Name, f.Name, f.Kind)
			}
			df := doctype.Field{Name: f.Name, Kind: kind, Array: f.Array}
			if kind == doctype.Object {
				nested, ok := byName[f.Type]
				if !ok {
					return nil, fmt.Errorf("document_types.%s.%s: unknown type %q", t.Name, f.Name, f.Type)
				}
				df.Type = nested
			}
			d.Fields = append(d.Fields, df)
		}
	}

	for _, d := range out {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("document_types.%s: %w", d.Name, err)
		}
	}
	return out, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
