package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"codescout/internal/chunker"
)

func init() {
	sqlite_vec.Auto()
}

// MetaEmbeddingModel is the meta key recording which model produced the
// stored vectors. A mismatch at startup means the whole index is stale.
const MetaEmbeddingModel = "embedding_model"

// Store persists indexed files, blocks, and their embeddings.
type Store interface {
	// GetFileHash returns the stored hash for a path, or "" if not indexed.
	GetFileHash(path string) (string, error)
	// UpsertFile records a file and drops its previous blocks and vectors.
	UpsertFile(f FileRecord) error
	// Upsert stores points, replacing any with the same ID.
	Upsert(points []Point) error
	// DeleteByFilePath removes a file and everything indexed from it.
	DeleteByFilePath(path string) error
	// Search returns blocks whose cosine similarity to the query vector is
	// at least minScore, best first, at most maxResults.
	Search(vector []float32, minScore float64, maxResults int) ([]SearchResult, error)
	// ListPaths returns every indexed file path.
	ListPaths() ([]string, error)
	// Count returns the number of stored blocks.
	Count() (int, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Clear removes all files, blocks, and vectors.
	Clear() error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath with the given embedding
// dimension, creating parent directories as needed.
func Open(dbPath string, dim int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db, dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) UpsertFile(f FileRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFileBlocks(tx, f.Path); err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO files (path, hash, language, size_bytes) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			language = excluded.language,
			size_bytes = excluded.size_bytes,
			indexed_at = CURRENT_TIMESTAMP
	`, f.Path, f.Hash, f.Language, f.SizeBytes)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Upsert(points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	blockStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO blocks
			(id, file_path, identifier, type, start_line, end_line, content, file_hash, segment_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer blockStmt.Close()

	// vec0 virtual tables reject INSERT OR REPLACE, so replacement is an
	// explicit delete-then-insert per point.
	vecDelStmt, err := tx.Prepare("DELETE FROM vec_blocks WHERE block_id = ?")
	if err != nil {
		return err
	}
	defer vecDelStmt.Close()

	vecStmt, err := tx.Prepare("INSERT INTO vec_blocks (block_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for _, p := range points {
		b := p.Block
		if _, err := blockStmt.Exec(p.ID, b.FilePath, b.Identifier, b.Type, b.StartLine, b.EndLine, b.Content, b.FileHash, b.SegmentHash); err != nil {
			return fmt.Errorf("insert block %s: %w", b.SegmentHash, err)
		}
		blob, err := sqlite_vec.SerializeFloat32(p.Vector)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", b.SegmentHash, err)
		}
		if _, err := vecDelStmt.Exec(p.ID); err != nil {
			return fmt.Errorf("replace embedding for %s: %w", b.SegmentHash, err)
		}
		if _, err := vecStmt.Exec(p.ID, blob); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", b.SegmentHash, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteByFilePath(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFileBlocks(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteFileBlocks removes a file's blocks and vectors inside tx. vec0
// tables do not support joins in DELETE, so the IDs are collected first.
func deleteFileBlocks(tx *sql.Tx, path string) error {
	rows, err := tx.Query("SELECT id FROM blocks WHERE file_path = ?", path)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM vec_blocks WHERE block_id = ?", id); err != nil {
			return err
		}
	}
	_, err = tx.Exec("DELETE FROM blocks WHERE file_path = ?", path)
	return err
}

func (s *SQLiteStore) Search(vector []float32, minScore float64, maxResults int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT v.distance,
		       b.file_path, b.identifier, b.type, b.start_line, b.end_line,
		       b.content, b.file_hash, b.segment_hash
		FROM vec_blocks v
		JOIN blocks b ON b.id = v.block_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, maxResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			distance float64
			b        chunker.CodeBlock
		)
		err := rows.Scan(&distance,
			&b.FilePath, &b.Identifier, &b.Type, &b.StartLine, &b.EndLine,
			&b.Content, &b.FileHash, &b.SegmentHash)
		if err != nil {
			return nil, err
		}
		score := 1 - distance
		if score < minScore {
			continue
		}
		results = append(results, SearchResult{Block: b, Score: score})
	}
	return results, rows.Err()
}

func (s *SQLiteStore) ListPaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM blocks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM vec_blocks",
		"DELETE FROM blocks",
		"DELETE FROM files",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
