package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the groundkit API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Cache      CacheConfig      `yaml:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Tiers      TiersConfig      `yaml:"tiers"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds vector index settings.
type StorageConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// ChunkingConfig holds chunking policy constants.
type ChunkingConfig struct {
	Size        int `yaml:"size"`         // target chunk size in bytes
	Overlap     int `yaml:"overlap"`      // overlap between chunks in bytes
	WindowLimit int `yaml:"window_limit"` // max chunks per processing window
}

// EmbeddingConfig holds embedding provider and batching settings.
type EmbeddingConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Dimensions    int     `yaml:"dimensions"`
	BatchSize     int     `yaml:"batch_size"`      // max texts per provider call
	Concurrency   int     `yaml:"concurrency"`     // in-flight provider calls, process-wide
	TimeoutSec    int     `yaml:"timeout_sec"`     // per provider call
	RatePerSec    float64 `yaml:"rate_per_sec"`    // outbound call rate limit, 0 = unlimited
	CacheTTLHours int     `yaml:"cache_ttl_hours"` // embedding cache TTL
	Provider      string  `yaml:"provider"`        // label for logs/metrics
}

// GenerationConfig holds generation provider settings.
type GenerationConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"` // bounded retries on transient errors
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Workers              int     `yaml:"workers"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"` // fallback fraction above which a source FAILs
	FetchTimeoutSec      int     `yaml:"fetch_timeout_sec"`      // URL source fetch timeout
	MaxContentBytes      int64   `yaml:"max_content_bytes"`      // 0 = unlimited
	UploadDir            string  `yaml:"upload_dir"`             // where uploaded documents land
	RefreshSweepMin      int     `yaml:"refresh_sweep_min"`      // URL re-ingest sweep interval, 0 disables
}

// CacheConfig holds TTLs per cache class.
type CacheConfig struct {
	RetrievalTTLMin int `yaml:"retrieval_ttl_min"` // retrieval results, medium TTL
	ResponseTTLMin  int `yaml:"response_ttl_min"`  // generated responses, short TTL
	QueryLogTTLDays int `yaml:"query_log_ttl_days"`
}

// RetrievalConfig holds cross-tier retrieval settings.
type RetrievalConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`  // merge weight for vector similarity
	LexicalWeight float64 `yaml:"lexical_weight"` // merge weight for lexical score
}

// TierConfig holds per-tier retrieval and generation settings.
type TierConfig struct {
	Candidates    int     `yaml:"candidates"`     // per-method candidate cap
	MinSimilarity float64 `yaml:"min_similarity"` // vector similarity threshold
	FinalResults  int     `yaml:"final_results"`  // merged list size
	MaxTokens     int     `yaml:"max_tokens"`     // generation token budget
}

// TiersConfig holds the four tier profiles.
type TiersConfig struct {
	Basic         TierConfig `yaml:"basic"`
	Enhanced      TierConfig `yaml:"enhanced"`
	Advanced      TierConfig `yaml:"advanced"`
	Comprehensive TierConfig `yaml:"comprehensive"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.HNSWM <= 0 {
		c.Storage.HNSWM = 32
	}
	if c.Storage.HNSWEFConstruct <= 0 {
		c.Storage.HNSWEFConstruct = 400
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 500
	}
	if c.Chunking.Overlap <= 0 {
		c.Chunking.Overlap = 100
	}
	if c.Chunking.WindowLimit <= 0 {
		c.Chunking.WindowLimit = 1000
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 50
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 10
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 24
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}
	if c.Generation.MaxRetries <= 0 {
		c.Generation.MaxRetries = 1
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.FailureRateThreshold <= 0 {
		c.Ingest.FailureRateThreshold = 0.5
	}
	if c.Ingest.FetchTimeoutSec <= 0 {
		c.Ingest.FetchTimeoutSec = 30
	}
	if c.Ingest.UploadDir == "" {
		c.Ingest.UploadDir = "data/uploads"
	}
	if c.Ingest.RefreshSweepMin < 0 {
		c.Ingest.RefreshSweepMin = 0
	}
	if c.Cache.RetrievalTTLMin <= 0 {
		c.Cache.RetrievalTTLMin = 30
	}
	if c.Cache.ResponseTTLMin <= 0 {
		c.Cache.ResponseTTLMin = 10
	}
	if c.Cache.QueryLogTTLDays <= 0 {
		c.Cache.QueryLogTTLDays = 30
	}
	if c.Retrieval.VectorWeight <= 0 {
		c.Retrieval.VectorWeight = 0.7
	}
	if c.Retrieval.LexicalWeight <= 0 {
		c.Retrieval.LexicalWeight = 0.3
	}
	applyTierDefaults(&c.Tiers.Basic, 5, 0.75, 3, 512)
	applyTierDefaults(&c.Tiers.Enhanced, 10, 0.70, 5, 1024)
	applyTierDefaults(&c.Tiers.Advanced, 20, 0.65, 8, 2048)
	applyTierDefaults(&c.Tiers.Comprehensive, 40, 0.60, 12, 4096)
}

func applyTierDefaults(t *TierConfig, candidates int, minSim float64, final, maxTokens int) {
	if t.Candidates <= 0 {
		t.Candidates = candidates
	}
	if t.MinSimilarity <= 0 {
		t.MinSimilarity = minSim
	}
	if t.FinalResults <= 0 {
		t.FinalResults = final
	}
	if t.MaxTokens <= 0 {
		t.MaxTokens = maxTokens
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Ingest.FailureRateThreshold > 1 {
		return fmt.Errorf("ingest.failure_rate_threshold must be in (0, 1], got %f",
			c.Ingest.FailureRateThreshold)
	}
	for _, t := range []struct {
		name string
		cfg  TierConfig
	}{
		{"basic", c.Tiers.Basic},
		{"enhanced", c.Tiers.Enhanced},
		{"advanced", c.Tiers.Advanced},
		{"comprehensive", c.Tiers.Comprehensive},
	} {
		if t.cfg.MinSimilarity < 0 || t.cfg.MinSimilarity > 1 {
			return fmt.Errorf("tiers.%s.min_similarity must be in [0, 1], got %f",
				t.name, t.cfg.MinSimilarity)
		}
		if t.cfg.FinalResults > t.cfg.Candidates {
			return fmt.Errorf("tiers.%s.final_results (%d) exceeds candidates (%d)",
				t.name, t.cfg.FinalResults, t.cfg.Candidates)
		}
	}
	return nil
}

// EmbeddingCacheTTL returns the embedding cache TTL as a duration.
func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.Embedding.CacheTTLHours) * time.Hour
}

// ResponseCacheTTL returns the generated-response cache TTL as a duration.
func (c *Config) ResponseCacheTTL() time.Duration {
	return time.Duration(c.Cache.ResponseTTLMin) * time.Minute
}

// RetrievalCacheTTL returns the retrieval results cache TTL as a duration.
func (c *Config) RetrievalCacheTTL() time.Duration {
	return time.Duration(c.Cache.RetrievalTTLMin) * time.Minute
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
