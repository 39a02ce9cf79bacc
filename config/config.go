// Package config loads application settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings holds every tunable the service reads at startup.
type Settings struct {
	// LLM providers
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	CohereAPIKey    string

	// Embeddings
	EmbeddingModel     string
	EmbeddingDimension int

	// Retrieval loop
	InitialRetrievalK   int
	RerankTopK          int
	MaxIterations       int
	ConfidenceThreshold float64

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Backends
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	MongoURI         string
	MongoDatabase    string
}

// Load reads settings from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	s := &Settings{
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:      envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		CohereAPIKey:        os.Getenv("COHERE_API_KEY"),
		EmbeddingModel:      envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension:  envIntOr("EMBEDDING_DIMENSION", 1536),
		InitialRetrievalK:   envIntOr("INITIAL_RETRIEVAL_K", 20),
		RerankTopK:          envIntOr("RERANK_TOP_K", 5),
		MaxIterations:       envIntOr("MAX_ITERATIONS", 2),
		ConfidenceThreshold: envFloatOr("CONFIDENCE_THRESHOLD", 0.5),
		ChunkSize:           envIntOr("CHUNK_SIZE", 512),
		ChunkOverlap:        envIntOr("CHUNK_OVERLAP", 50),
		PostgresHost:        envOr("POSTGRES_HOST", "127.0.0.1"),
		PostgresPort:        envIntOr("POSTGRES_PORT", 5432),
		PostgresUser:        envOr("POSTGRES_USER", "postgres"),
		PostgresPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:          envOr("POSTGRES_DB", "docarag"),
		RedisAddr:           envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             envIntOr("REDIS_DB", 0),
		MongoURI:            envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       envOr("MONGO_DATABASE", "docarag"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.InitialRetrievalK <= 0 {
		return fmt.Errorf("INITIAL_RETRIEVAL_K must be positive, got %d", s.InitialRetrievalK)
	}
	if s.RerankTopK <= 0 || s.RerankTopK > s.InitialRetrievalK {
		return fmt.Errorf("RERANK_TOP_K must be in (0, %d], got %d", s.InitialRetrievalK, s.RerankTopK)
	}
	if s.MaxIterations < 1 || s.MaxIterations > 5 {
		return fmt.Errorf("MAX_ITERATIONS must be in [1, 5], got %d", s.MaxIterations)
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0, 1], got %g", s.ConfidenceThreshold)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", s.ChunkOverlap, s.ChunkSize)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
