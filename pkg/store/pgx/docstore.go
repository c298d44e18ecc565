package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/common"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// DocumentDBStorage implements store.DocumentStorage on PostgreSQL. The
// document body (text, chunks, analyses, graph, settings) is stored as a
// single JSONB value; listing metadata is kept in dedicated columns so
// ListDocuments never loads full documents.
type DocumentDBStorage struct {
	conn pgxIConn
}

// NewDocumentDBStorage creates a document store using an existing database
// connection or pool.
func NewDocumentDBStorage(conn pgxIConn) *DocumentDBStorage {
	return &DocumentDBStorage{conn: conn}
}

// SaveDocument upserts the full document. Concurrent writers resolve by
// last-write-wins on the whole row.
func (s *DocumentDBStorage) SaveDocument(ctx context.Context, doc *common.Document) error {
	sanitized := *doc
	sanitized.Title = util.SanitizePostgresText(doc.Title)
	sanitized.Text = util.SanitizePostgresText(doc.Text)

	data, err := json.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	progressIndex := firstUnanalyzed(doc.Chunks)

	_, err = s.conn.Exec(ctx, `
		INSERT INTO documents (id, title, total_chars, chunk_count, analyzed_count, progress_index, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			total_chars = EXCLUDED.total_chars,
			chunk_count = EXCLUDED.chunk_count,
			analyzed_count = EXCLUDED.analyzed_count,
			progress_index = EXCLUDED.progress_index,
			data = EXCLUDED.data,
			updated_at = now()
	`, doc.ID, sanitized.Title, len([]rune(doc.Text)), len(doc.Chunks), doc.AnalyzedCount(), progressIndex, data)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}

	logger.Debug("[Store] Document saved", "document_id", doc.ID, "chunks", len(doc.Chunks), "analyzed", doc.AnalyzedCount())
	return nil
}

// GetDocument loads the full document body.
func (s *DocumentDBStorage) GetDocument(ctx context.Context, id string) (*common.Document, error) {
	var data []byte
	err := s.conn.QueryRow(ctx, `SELECT data FROM documents WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}

	var doc common.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

// DeleteDocument removes the document row. Deleting a missing document is
// not an error.
func (s *DocumentDBStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// ListDocuments returns listing metadata for all documents, most recently
// updated first.
func (s *DocumentDBStorage) ListDocuments(ctx context.Context) ([]common.DocumentMeta, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, title, total_chars, chunk_count, analyzed_count, progress_index, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var metas []common.DocumentMeta
	for rows.Next() {
		var meta common.DocumentMeta
		if err := rows.Scan(
			&meta.ID,
			&meta.Title,
			&meta.TotalChars,
			&meta.ChunkCount,
			&meta.AnalyzedCount,
			&meta.ProgressIndex,
			&meta.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document meta: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func firstUnanalyzed(chunks []common.Chunk) int {
	for i := range chunks {
		if !chunks[i].Analyzed() {
			return i
		}
	}
	return len(chunks)
}
