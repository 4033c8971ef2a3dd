// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInt      = errors.New("invalid integer value")
	ErrInvalidFloat    = errors.New("invalid float value")
	ErrInvalidDuration = errors.New("invalid duration value")
	ErrOutOfRange      = errors.New("value out of range")
)

// Defaults for the ingestion and chat pipelines.
const (
	DefaultHTTPAddr           = ":8080"
	DefaultVectorStore        = "libsql"
	DefaultEmbeddingProvider  = "voyage"
	DefaultEmbeddingModel     = "voyage-large-2-instruct"
	DefaultLLMProvider        = "mistral"
	DefaultLLMModel           = "open-mistral-7b"
	DefaultTokenizer          = "cl100k_base"
	DefaultChunkSize          = 200
	DefaultChunkOverlap       = 40
	DefaultEmbeddingBatchSize = 128
	DefaultMinContentLength   = 200
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultWPPerPage          = 100

	// MaxEmbeddingBatchSize is the largest batch the embedding APIs accept.
	MaxEmbeddingBatchSize = 128
	// MaxWPPerPage is the largest page size WordPress serves.
	MaxWPPerPage = 100
)

// Config holds every setting the CLI and server need.
type Config struct {
	Stage    string
	LogLevel string
	AuthKey  string
	HTTPAddr string

	VectorStore    string
	TursoURL       string
	TursoAuthToken string

	EmbeddingProvider string
	EmbeddingModel    string
	VoyageAPIKey      string
	OpenAIAPIKey      string

	LLMProvider   string
	LLMModel      string
	LLMBaseURL    string
	MistralAPIKey string

	Tokenizer          string
	ChunkSize          int
	ChunkOverlap       int
	EmbeddingBatchSize int
	MinContentLength   int

	WPPerPage           int
	WPRequestsPerSecond float64
	HTTPTimeout         time.Duration
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Stage:    os.Getenv("STAGE"),
		LogLevel: getString("LOG_LEVEL", "info"),
		AuthKey:  os.Getenv("AUTH_KEY"),
		HTTPAddr: getString("HTTP_ADDR", DefaultHTTPAddr),

		VectorStore:    strings.ToLower(getString("VECTOR_STORE", DefaultVectorStore)),
		TursoURL:       os.Getenv("TURSO_DATABASE_URL"),
		TursoAuthToken: os.Getenv("TURSO_AUTH_TOKEN"),

		EmbeddingProvider: strings.ToLower(getString("EMBEDDING_PROVIDER", DefaultEmbeddingProvider)),
		EmbeddingModel:    getString("EMBEDDING_MODEL", DefaultEmbeddingModel),
		VoyageAPIKey:      os.Getenv("VOYAGE_API_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),

		LLMProvider:   strings.ToLower(getString("LLM_PROVIDER", DefaultLLMProvider)),
		LLMModel:      getString("LLM_MODEL", DefaultLLMModel),
		LLMBaseURL:    os.Getenv("LLM_BASE_URL"),
		MistralAPIKey: os.Getenv("MISTRAL_API_KEY"),

		Tokenizer: getString("CHUNKER_TOKENIZER", DefaultTokenizer),
	}

	var err error
	if cfg.ChunkSize, err = getInt("CHUNK_SIZE", DefaultChunkSize); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getInt("CHUNK_OVERLAP", DefaultChunkOverlap); err != nil {
		return nil, err
	}
	if cfg.EmbeddingBatchSize, err = getInt("EMBEDDING_BATCH_SIZE", DefaultEmbeddingBatchSize); err != nil {
		return nil, err
	}
	if err := checkRange("EMBEDDING_BATCH_SIZE", cfg.EmbeddingBatchSize, 1, MaxEmbeddingBatchSize); err != nil {
		return nil, err
	}
	if cfg.MinContentLength, err = getInt("MIN_CONTENT_LENGTH", DefaultMinContentLength); err != nil {
		return nil, err
	}
	if cfg.WPPerPage, err = getInt("WP_PER_PAGE", DefaultWPPerPage); err != nil {
		return nil, err
	}
	if err := checkRange("WP_PER_PAGE", cfg.WPPerPage, 1, MaxWPPerPage); err != nil {
		return nil, err
	}
	if cfg.WPRequestsPerSecond, err = getFloat("WP_REQUESTS_PER_SECOND", 0); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

func checkRange(key string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%d, want %d..%d", ErrOutOfRange, key, v, lo, hi)
	}
	return nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Join(ErrInvalidInt, errors.New(key+"="+v))
	}
	return i, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Join(ErrInvalidFloat, errors.New(key+"="+v))
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Join(ErrInvalidDuration, errors.New(key+"="+v))
	}
	return d, nil
}
