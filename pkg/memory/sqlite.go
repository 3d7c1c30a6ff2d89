package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists vectors in SQLite. Similarity is computed in process,
// which is adequate for a personal preference list.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database file and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, stderrors.New("sqlite path is empty")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore creates a SQLite-backed vector store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensureVectorSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureVectorSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vector_collections (
			name TEXT PRIMARY KEY,
			dim INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS vector_points (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			vector BLOB NOT NULL,
			payload_json TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			UNIQUE(collection, id)
		);
		CREATE INDEX IF NOT EXISTS vector_points_collection ON vector_points(collection, seq);
	`)
	if err != nil {
		return fmt.Errorf("create vector schema: %w", err)
	}
	return nil
}

// CreateCollection implements VectorStore.
func (s *SQLiteStore) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	dim, err := s.dimension(ctx, name)
	switch {
	case err == nil:
		if dim != vectorSize {
			return fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, dim, vectorSize)
		}
		return nil
	case !stderrors.Is(err, ErrCollectionNotFound):
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vector_collections (name, dim) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, int64(vectorSize))
	return err
}

func (s *SQLiteStore) dimension(ctx context.Context, name string) (uint64, error) {
	var dim int64
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM vector_collections WHERE name = ?`, name).Scan(&dim)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, err
	}
	return uint64(dim), nil
}

// Upsert implements VectorStore.
func (s *SQLiteStore) Upsert(ctx context.Context, name string, points []Point) error {
	dim, err := s.dimension(ctx, name)
	if err != nil {
		return err
	}
	for _, p := range points {
		if uint64(len(p.Vector)) != dim {
			return fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, dim, len(p.Vector))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", p.ID, err)
		}
		ts := p.Timestamp
		if ts == 0 {
			ts = time.Now().Unix()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vector_points (collection, id, vector, payload_json, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				vector = excluded.vector,
				payload_json = excluded.payload_json
		`, name, p.ID, encodeVector(p.Vector), string(payload), ts); err != nil {
			return fmt.Errorf("upsert %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Search implements VectorStore.
func (s *SQLiteStore) Search(ctx context.Context, name string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	dim, err := s.dimension(ctx, name)
	if err != nil {
		return nil, err
	}
	if uint64(len(vector)) != dim {
		return nil, fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, dim, len(vector))
	}
	points, err := s.List(ctx, name)
	if err != nil {
		return nil, err
	}
	return rank(points, vector, limit, scoreThreshold), nil
}

// List implements VectorStore.
func (s *SQLiteStore) List(ctx context.Context, name string) ([]Point, error) {
	if _, err := s.dimension(ctx, name); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vector, payload_json, created_at
		FROM vector_points
		WHERE collection = ?
		ORDER BY seq ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var (
			p       Point
			blob    []byte
			payload string
		)
		if err := rows.Scan(&p.ID, &blob, &payload, &p.Timestamp); err != nil {
			return nil, err
		}
		p.Vector = decodeVector(blob)
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for %s: %w", p.ID, err)
			}
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Count implements VectorStore.
func (s *SQLiteStore) Count(ctx context.Context, name string) (int, error) {
	if _, err := s.dimension(ctx, name); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_points WHERE collection = ?`, name).Scan(&n)
	return n, err
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
