package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	// WordVecURL points at the word-vector similarity service used for
	// keyword expansion. Empty disables expansion.
	WordVecURL     string        `envconfig:"WORDVEC_URL"`
	WordVecTimeout time.Duration `envconfig:"WORDVEC_TIMEOUT" default:"10s"`

	// Corpus year bounds. Requests outside these are rejected.
	CorpusStartYear int `envconfig:"CORPUS_START_YEAR" default:"1948"`
	CorpusEndYear   int `envconfig:"CORPUS_END_YEAR" default:"1979"`

	// Retrieval defaults and caps.
	DefaultTopK      int           `envconfig:"DEFAULT_TOP_K" default:"10"`
	MaxTopK          int           `envconfig:"MAX_TOP_K" default:"100"`
	MaxWindowSize    int           `envconfig:"MAX_WINDOW_SIZE" default:"50"`
	WindowTimeout    time.Duration `envconfig:"WINDOW_TIMEOUT" default:"30s"`
	AvailableLengths []int         `envconfig:"CHUNK_SIZES" default:"500,2000,3000"`

	// Analysis and reranking models.
	DefaultModel string `envconfig:"DEFAULT_MODEL" default:"gpt-4o"`
	RerankModel  string `envconfig:"RERANK_MODEL" default:"gpt-4o-mini"`

	// LLMConcurrency is the global ceiling on outstanding LLM calls
	// across all requests.
	LLMConcurrency int `envconfig:"LLM_CONCURRENCY" default:"8"`

	// Export artifacts are deleted after this retention window.
	ExportRetention     time.Duration `envconfig:"EXPORT_RETENTION" default:"1h"`
	ExportSweepInterval time.Duration `envconfig:"EXPORT_SWEEP_INTERVAL" default:"5m"`

	// Optional object storage for export artifacts. When unset, exports
	// live only in the database.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"chronotex-exports"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CHRONOTEX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.CorpusStartYear > cfg.CorpusEndYear {
		return nil, fmt.Errorf("corpus start year %d after end year %d", cfg.CorpusStartYear, cfg.CorpusEndYear)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasWordVec() bool {
	return c.WordVecURL != ""
}
