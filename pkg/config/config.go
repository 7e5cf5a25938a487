// Package config provides environment-driven configuration for the
// NL→SQL service: limits, thresholds, TTLs, and connection settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the umbrella configuration object assembled once at startup
// and passed explicitly to every component constructor. No globals.
type Config struct {
	SchemaID            string
	CanonicalSchemaPath string
	CORSAllowedOrigins  []string

	Database DatabaseConfig
	Store    StoreConfig
	Limits   Limits

	LLMBaseURL       string
	LLMAPIKey        string
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
}

// DatabaseConfig describes the target (user) database the pipeline queries.
type DatabaseConfig struct {
	Type DatabaseType // sqlite | postgres
	DSN  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DatabaseType mirrors the canonical schema's database_type field.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// StoreConfig describes the internal persistence backend for the SQL
// cache and embedding store (separate from the target database).
type StoreConfig struct {
	Backend DatabaseType // sqlite (default) | postgres
	Path    string       // sqlite file path
	DSN     string       // postgres DSN, used when Backend == postgres
}

// Limits holds every tunable threshold named in spec.md §6.5.
type Limits struct {
	MaxRelevantTables  int
	MaxExpandedTables  int
	MaxSchemaTokens    int
	SimilarityThresh   float64
	MaxCacheRows       int
	PreviewRows        int
	CacheTTLSeconds    int
	CSVChunkSize       int
	SmartCountCap      int
	SessionHistoryKeep int // stored exchanges per session (K)
	SessionHistoryUse  int // exchanges injected into prompts
	GeneratorRetries   int
	LLMTimeout         time.Duration
	DBPreviewTimeout   time.Duration
	DBChatTimeout      time.Duration
	RequestTimeout     time.Duration
	SessionSweepEvery  time.Duration
	KeepAliveInterval  time.Duration
	ShutdownGrace      time.Duration
}

// DefaultLimits returns the defaults named throughout spec.md.
func DefaultLimits() Limits {
	return Limits{
		MaxRelevantTables:  5,
		MaxExpandedTables:  15,
		MaxSchemaTokens:    8000,
		SimilarityThresh:   0.15,
		MaxCacheRows:       50,
		PreviewRows:        50,
		CacheTTLSeconds:    600,
		CSVChunkSize:       1000,
		SmartCountCap:      1000,
		SessionHistoryKeep: 5,
		SessionHistoryUse:  3,
		GeneratorRetries:   3,
		LLMTimeout:         60 * time.Second,
		DBPreviewTimeout:   30 * time.Second,
		DBChatTimeout:      45 * time.Second,
		RequestTimeout:     120 * time.Second,
		SessionSweepEvery:  60 * time.Second,
		KeepAliveInterval:  15 * time.Second,
		ShutdownGrace:      10 * time.Second,
	}
}

// LoadFromEnv assembles a Config from environment variables, applying
// the defaults above and validating the result. Mirrors the teacher's
// LoadConfigFromEnv + Validate() shape in pkg/database/config.go.
func LoadFromEnv() (*Config, error) {
	limits := DefaultLimits()

	if err := overrideInt(&limits.MaxRelevantTables, "MAX_RELEVANT_TABLES"); err != nil {
		return nil, err
	}
	if err := overrideInt(&limits.MaxExpandedTables, "MAX_EXPANDED_TABLES"); err != nil {
		return nil, err
	}
	if err := overrideInt(&limits.MaxSchemaTokens, "MAX_SCHEMA_TOKENS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&limits.MaxCacheRows, "MAX_CACHE_ROWS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&limits.PreviewRows, "PREVIEW_ROWS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&limits.CacheTTLSeconds, "CACHE_TTL_SECONDS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&limits.CSVChunkSize, "CSV_CHUNK_SIZE"); err != nil {
		return nil, err
	}

	schemaID := os.Getenv("SCHEMA_ID")
	if schemaID == "" {
		return nil, fmt.Errorf("SCHEMA_ID is required")
	}

	canonicalPath := getEnvOrDefault("CANONICAL_SCHEMA_PATH", "./schema.json")

	var origins []string
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				origins = append(origins, o)
			}
		}
	}

	dbType := DatabaseType(getEnvOrDefault("DB_TYPE", string(DatabaseSQLite)))
	if dbType != DatabaseSQLite && dbType != DatabasePostgres {
		return nil, fmt.Errorf("invalid DB_TYPE: %s (must be sqlite or postgres)", dbType)
	}

	maxOpen, err := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	connLifetime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	storeBackend := DatabaseType(getEnvOrDefault("STORE_BACKEND", string(DatabaseSQLite)))
	if storeBackend != DatabaseSQLite && storeBackend != DatabasePostgres {
		return nil, fmt.Errorf("invalid STORE_BACKEND: %s (must be sqlite or postgres)", storeBackend)
	}

	cfg := &Config{
		SchemaID:            schemaID,
		CanonicalSchemaPath: canonicalPath,
		CORSAllowedOrigins:  origins,
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             os.Getenv("DB_DSN"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: connLifetime,
		},
		Store: StoreConfig{
			Backend: storeBackend,
			Path:    getEnvOrDefault("STORE_SQLITE_PATH", fmt.Sprintf("./data/%s.db", schemaID)),
			DSN:     os.Getenv("STORE_POSTGRES_DSN"),
		},
		Limits:           limits,
		LLMBaseURL:       os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:        os.Getenv("LLM_API_KEY"),
		EmbeddingBaseURL: os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingAPIKey:  os.Getenv("EMBEDDING_API_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants not already enforced while parsing.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Store.Backend == DatabasePostgres && c.Store.DSN == "" {
		return fmt.Errorf("STORE_POSTGRES_DSN is required when STORE_BACKEND=postgres")
	}
	if c.Limits.MaxRelevantTables < 1 {
		return fmt.Errorf("MAX_RELEVANT_TABLES must be at least 1")
	}
	if c.Limits.MaxExpandedTables < c.Limits.MaxRelevantTables {
		return fmt.Errorf("MAX_EXPANDED_TABLES must be >= MAX_RELEVANT_TABLES")
	}
	return nil
}

func overrideInt(dst *int, envVar string) error {
	v := os.Getenv(envVar)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", envVar, err)
	}
	*dst = n
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
