package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/vector"
)

// PGVectorStore implements VectorStore using PostgreSQL with the pgvector extension.
type PGVectorStore struct {
	db        *sql.DB
	dimension int
	tableName string
}

// PGVectorConfig holds pgvector configuration
type PGVectorConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // Embedding dimension (default: 1536 for OpenAI)
	TableName string // Table name (default: chunks)
}

// DefaultPGVectorConfig returns default pgvector configuration
func DefaultPGVectorConfig() *PGVectorConfig {
	return &PGVectorConfig{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "postgres",
		DBName:    "docarag",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "chunks",
	}
}

// NewPGVectorStore creates a new pgvector-based vector store
func NewPGVectorStore(config *PGVectorConfig) (*PGVectorStore, error) {
	if config == nil {
		config = DefaultPGVectorConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PGVectorStore{
		db:        db,
		dimension: config.Dimension,
		tableName: config.TableName,
	}

	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to setup pgvector: %w", err)
	}
	return store, nil
}

func (s *PGVectorStore) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		text TEXT NOT NULL,
		document_id VARCHAR(255) NOT NULL DEFAULT '',
		source_type VARCHAR(16) NOT NULL DEFAULT '',
		chunk_index INT NOT NULL DEFAULT 0,
		filename TEXT NOT NULL DEFAULT '',
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.tableName, s.dimension)
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexSQL := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_document_id_idx ON %s (document_id)`,
		s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("failed to create document index: %w", err)
	}
	return nil
}

// AddEmbedding adds a new embedding to the store
func (s *PGVectorStore) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil {
		return fmt.Errorf("embedding cannot be nil: %w", errors.ErrInvalidInput)
	}
	if embedding.ID == "" {
		return fmt.Errorf("embedding ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if len(embedding.Vector) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d: %w",
			s.dimension, len(embedding.Vector), errors.ErrInvalidInput)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, text, document_id, source_type, chunk_index, filename, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
	ON CONFLICT (id) DO UPDATE SET
		text = EXCLUDED.text,
		document_id = EXCLUDED.document_id,
		source_type = EXCLUDED.source_type,
		chunk_index = EXCLUDED.chunk_index,
		filename = EXCLUDED.filename,
		embedding = EXCLUDED.embedding,
		created_at = CURRENT_TIMESTAMP
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query,
		embedding.ID, embedding.Text, embedding.DocumentID, embedding.SourceType,
		embedding.ChunkIndex, embedding.Filename, vectorToString(embedding.Vector))
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

// Search performs filtered cosine similarity search ordered by descending score.
func (s *PGVectorStore) Search(ctx context.Context, queryVector []float32, filter *vector.Filter, topK int) ([]vector.Match, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d: %w",
			s.dimension, len(queryVector), errors.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 10
	}

	where := ""
	args := []any{vectorToString(queryVector)}
	if !filter.Empty() {
		var conds []string
		if filter.DocumentID != "" {
			args = append(args, filter.DocumentID)
			conds = append(conds, fmt.Sprintf("document_id = $%d", len(args)))
		}
		if filter.SourceType != "" {
			args = append(args, filter.SourceType)
			conds = append(conds, fmt.Sprintf("source_type = $%d", len(args)))
		}
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
	SELECT id, text, document_id, source_type, chunk_index, filename,
	       embedding::text, 1 - (embedding <=> $1::vector) AS score
	FROM %s
	%s
	ORDER BY embedding <=> $1::vector
	LIMIT $%d`, s.tableName, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var (
			emb       vector.Embedding
			vectorStr string
			score     float64
		)
		if err := rows.Scan(&emb.ID, &emb.Text, &emb.DocumentID, &emb.SourceType,
			&emb.ChunkIndex, &emb.Filename, &vectorStr, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		emb.Vector, err = stringToVector(vectorStr)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored vector: %w", err)
		}
		matches = append(matches, vector.Match{Embedding: &emb, Score: float32(score)})
	}
	return matches, rows.Err()
}

// DeleteByDocument removes all embeddings belonging to the given document.
func (s *PGVectorStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document ID cannot be empty: %w", errors.ErrInvalidInput)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", s.tableName)
	res, err := s.db.ExecContext(ctx, query, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// GetEmbedding retrieves a specific embedding by ID
func (s *PGVectorStore) GetEmbedding(ctx context.Context, id string) (*vector.Embedding, error) {
	query := fmt.Sprintf(`
	SELECT id, text, document_id, source_type, chunk_index, filename, embedding::text
	FROM %s WHERE id = $1`, s.tableName)

	var (
		emb       vector.Embedding
		vectorStr string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&emb.ID, &emb.Text, &emb.DocumentID,
		&emb.SourceType, &emb.ChunkIndex, &emb.Filename, &vectorStr)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	emb.Vector, err = stringToVector(vectorStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored vector: %w", err)
	}
	return &emb, nil
}

// Clear removes all embeddings
func (s *PGVectorStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", s.tableName)); err != nil {
		return fmt.Errorf("failed to clear embeddings: %w", err)
	}
	return nil
}

// Count returns the number of embeddings
func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// Close releases the underlying database connection.
func (s *PGVectorStore) Close() error {
	return s.db.Close()
}

func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func stringToVector(s string) ([]float32, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
