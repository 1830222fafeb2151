package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver

	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/models"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteIndex keeps a batch in a private in-memory SQLite database and uses a
// sqlite-vec vec0 table with cosine distance for KNN search. Row ids follow
// insertion order and break distance ties.
type SQLiteIndex struct {
	db        *sqlx.DB
	dimension int
	count     int
}

type segmentRow struct {
	Seq          int64   `db:"seq"`
	ID           string  `db:"id"`
	DocumentID   string  `db:"document_id"`
	DocumentName string  `db:"document_name"`
	Position     int     `db:"position"`
	StartOffset  int     `db:"start_offset"`
	EndOffset    int     `db:"end_offset"`
	Text         string  `db:"text"`
	Distance     float64 `db:"distance"`
}

// NewSQLiteIndex opens a fresh database. Every index owns its own database.
func NewSQLiteIndex() (*SQLiteIndex, error) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS segments (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		document_name TEXT NOT NULL,
		position INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		text TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create segments table: %w", err)
	}
	return nil
}

// serializeFloat32Vector converts a float32 slice to the byte format expected by sqlite-vec
func serializeFloat32Vector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	return buf
}

// Build replaces the index content. The vec0 table is recreated because its
// dimension is part of the schema.
func (s *SQLiteIndex) Build(ctx context.Context, segments []models.EmbeddedSegment) error {
	dim, err := checkBatch(segments)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS vec_segments`); err != nil {
		return fmt.Errorf("failed to drop vec_segments table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM segments`); err != nil {
		return fmt.Errorf("failed to clear segments: %w", err)
	}

	vecQuery := fmt.Sprintf(`
		CREATE VIRTUAL TABLE vec_segments USING vec0(
			embedding float[%d] distance_metric=cosine
		)
	`, dim)
	if _, err := tx.ExecContext(ctx, vecQuery); err != nil {
		return fmt.Errorf("failed to create vec_segments table: %w", err)
	}

	insertSegment, err := tx.PreparexContext(ctx, `
		INSERT INTO segments (seq, id, document_id, document_name, position, start_offset, end_offset, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer insertSegment.Close()

	insertVector, err := tx.PreparexContext(ctx, `INSERT INTO vec_segments (rowid, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer insertVector.Close()

	for i, seg := range segments {
		seq := int64(i + 1)
		if _, err := insertSegment.ExecContext(ctx, seq, seg.ID.String(), seg.DocumentID.String(),
			seg.DocumentName, seg.Position, seg.Start, seg.End, seg.Text); err != nil {
			return fmt.Errorf("failed to insert segment metadata: %w", err)
		}
		if _, err := insertVector.ExecContext(ctx, seq, serializeFloat32Vector(seg.Vector)); err != nil {
			return fmt.Errorf("failed to insert segment vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.dimension = dim
	s.count = len(segments)
	return nil
}

// Search performs KNN vector search using sqlite-vec.
func (s *SQLiteIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredSegment, error) {
	if s.count == 0 {
		return nil, apperrors.ErrEmptyIndex
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), s.dimension)
	}

	k = normalizeK(k)
	if k > s.count {
		k = s.count
	}

	// vec0 KNN does not define which rows win among equal distances, so the
	// ranking is done in SQL with an explicit insertion-order tiebreak.
	q := `
		SELECT
			s.seq, s.id, s.document_id, s.document_name, s.position,
			s.start_offset, s.end_offset, s.text,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_segments v
		JOIN segments s ON s.seq = v.rowid
		ORDER BY distance, s.seq
		LIMIT ?
	`

	var rows []segmentRow
	if err := s.db.SelectContext(ctx, &rows, q, serializeFloat32Vector(query), k); err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}

	results := make([]models.ScoredSegment, 0, len(rows))
	for _, r := range rows {
		seg, err := r.segment()
		if err != nil {
			return nil, err
		}
		results = append(results, models.ScoredSegment{Segment: seg, Score: 1 - r.Distance})
	}
	return results, nil
}

func (r segmentRow) segment() (models.Segment, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.Segment{}, fmt.Errorf("parse segment id %q: %w", r.ID, err)
	}
	docID, err := uuid.Parse(r.DocumentID)
	if err != nil {
		return models.Segment{}, fmt.Errorf("parse document id %q: %w", r.DocumentID, err)
	}
	return models.Segment{
		ID:           id,
		DocumentID:   docID,
		DocumentName: r.DocumentName,
		Position:     r.Position,
		Start:        r.StartOffset,
		End:          r.EndOffset,
		Text:         r.Text,
	}, nil
}

func (s *SQLiteIndex) Len() int {
	return s.count
}

func (s *SQLiteIndex) Dimension() int {
	return s.dimension
}

// Close releases the database. The in-memory content is gone afterwards.
func (s *SQLiteIndex) Close() error {
	s.count = 0
	s.dimension = 0
	return s.db.Close()
}
