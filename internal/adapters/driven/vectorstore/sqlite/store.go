// Package sqlite provides a persistent vector store backed by SQLite.
// Similarity is brute-force: candidate vectors are decoded and scored
// in Go with a dot product over pre-normalised values. Source
// replacement runs in a single transaction, so concurrent readers see
// either the old or the new complete chunk set.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/answercart/answercart/internal/adapters/driven/vectorstore/sqlite/migrations"
	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store is the SQLite-backed vector store.
type Store struct {
	db        *sql.DB
	path      string
	dimension int
}

// New creates a SQLite vector store at the specified data directory for
// vectors of the given dimension.
// If dataDir is empty, defaults to ~/.answercart/data.
func New(dataDir string, dimension int) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".answercart", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "knowledge.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:        db,
		path:      dbPath,
		dimension: dimension,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for i, name := range names {
		version := i + 1
		if version <= currentVersion {
			continue
		}

		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(script)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert stores a chunk and its vector, replacing any existing entry
// with the same chunk ID.
func (s *Store) Upsert(ctx context.Context, chunk domain.Chunk, vector domain.EmbeddingVector) error {
	if vector.Dimension() != s.dimension {
		return domain.ErrDimensionMismatch
	}

	_, err := s.db.ExecContext(ctx, upsertSQL, upsertArgs(chunk, vector)...)
	if err != nil {
		return storeErr("saving chunk", err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO chunks (chunk_id, source_id, source_type, language, text, content_hash,
		position, quality, token_estimate, hard_cut, last_modified_at, created_at,
		embedding, model_id, dimension)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chunk_id) DO UPDATE SET
		source_id = excluded.source_id,
		source_type = excluded.source_type,
		language = excluded.language,
		text = excluded.text,
		content_hash = excluded.content_hash,
		position = excluded.position,
		quality = excluded.quality,
		token_estimate = excluded.token_estimate,
		hard_cut = excluded.hard_cut,
		last_modified_at = excluded.last_modified_at,
		created_at = excluded.created_at,
		embedding = excluded.embedding,
		model_id = excluded.model_id,
		dimension = excluded.dimension
`

func upsertArgs(chunk domain.Chunk, vector domain.EmbeddingVector) []any {
	return []any{
		chunk.ID, chunk.SourceID, string(chunk.SourceType), chunk.Language, chunk.Text,
		chunk.ContentHash, chunk.Position, chunk.Quality, chunk.TokenEstimate,
		boolToInt(chunk.HardCut), chunk.LastModifiedAt, chunk.CreatedAt,
		float32SliceToBytes(vector.Values), vector.ModelID, vector.Dimension(),
	}
}

// ReplaceSource atomically swaps all chunks for a source inside one
// transaction.
func (s *Store) ReplaceSource(ctx context.Context, sourceID string, chunks []domain.Chunk, vectors []domain.EmbeddingVector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if v.Dimension() != s.dimension {
			return domain.ErrDimensionMismatch
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
		return storeErr("deleting old chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return storeErr("preparing statement", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, upsertArgs(chunk, vectors[i])...); err != nil {
			return storeErr("saving chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("committing transaction", err)
	}
	return nil
}

// DeleteBySource removes all chunks for a source.
func (s *Store) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID)
	if err != nil {
		return 0, storeErr("deleting chunks", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("counting deleted chunks", err)
	}
	return int(deleted), nil
}

// Query scores every stored vector of the query's model against the
// query vector and returns the topK by descending similarity.
func (s *Store) Query(ctx context.Context, vector domain.EmbeddingVector, topK int, filter *driven.QueryFilter) ([]domain.RetrievalCandidate, error) {
	if vector.Dimension() != s.dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = 10
	}

	query := `
		SELECT chunk_id, source_id, source_type, language, text, content_hash,
			position, quality, token_estimate, hard_cut, last_modified_at, created_at,
			embedding
		FROM chunks WHERE model_id = ? AND dimension = ?`
	args := []any{vector.ModelID, s.dimension}

	if filter != nil && filter.Language != "" {
		query += " AND language = ?"
		args = append(args, filter.Language)
	}
	if filter != nil && len(filter.SourceTypes) > 0 {
		placeholders := strings.Repeat("?,", len(filter.SourceTypes))
		query += " AND source_type IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, t := range filter.SourceTypes {
			args = append(args, string(t))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("querying chunks", err)
	}
	defer rows.Close()

	var candidates []domain.RetrievalCandidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, values, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.RetrievalCandidate{
			Chunk:      chunk,
			Similarity: vector.Dot(domain.EmbeddingVector{Values: values}),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating chunks", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// scanChunk reads one chunk row with its raw vector values.
func scanChunk(rows *sql.Rows) (domain.Chunk, []float32, error) {
	var (
		chunk      domain.Chunk
		sourceType string
		hardCut    int
		modified   sql.NullTime
		created    sql.NullTime
		blob       []byte
	)
	if err := rows.Scan(&chunk.ID, &chunk.SourceID, &sourceType, &chunk.Language,
		&chunk.Text, &chunk.ContentHash, &chunk.Position, &chunk.Quality,
		&chunk.TokenEstimate, &hardCut, &modified, &created, &blob); err != nil {
		return domain.Chunk{}, nil, storeErr("scanning chunk", err)
	}

	chunk.SourceType = domain.SourceType(sourceType)
	chunk.HardCut = hardCut != 0
	if modified.Valid {
		chunk.LastModifiedAt = modified.Time
	}
	if created.Valid {
		chunk.CreatedAt = created.Time
	}
	return chunk, bytesToFloat32Slice(blob), nil
}

// HashExists reports whether a content hash exists outside a source.
func (s *Store) HashExists(ctx context.Context, contentHash, excludeSourceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM chunks WHERE content_hash = ? AND source_id <> ? LIMIT 1",
		contentHash, excludeSourceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("checking hash", err)
	}
	return true, nil
}

// HashesBySource returns the content hashes stored for a source.
func (s *Store) HashesBySource(ctx context.Context, sourceID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT content_hash FROM chunks WHERE source_id = ?", sourceID)
	if err != nil {
		return nil, storeErr("querying hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, storeErr("scanning hash", err)
		}
		hashes[hash] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating hashes", err)
	}
	return hashes, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, storeErr("counting chunks", err)
	}
	return count, nil
}

// storeErr wraps a driver error as a store-unavailable domain failure
// so the orchestrator can degrade instead of crash.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
