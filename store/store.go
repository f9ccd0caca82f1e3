package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// sqliteTime is the layout SQLite uses for CURRENT_TIMESTAMP.
const sqliteTime = "2006-01-02 15:04:05"

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Pages       int    `json:"pages"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Analysis represents a row in the analyses table joined with its
// document.
type Analysis struct {
	ID               int64  `json:"id"`
	DocumentID       int64  `json:"document_id"`
	Filename         string `json:"filename"`
	ContentHash      string `json:"content_hash"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	Markdown         string `json:"markdown,omitempty"`
	RawResponse      string `json:"raw_response,omitempty"`
	Parsed           bool   `json:"parsed"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	CreatedAt        string `json:"created_at"`
}

// Store wraps the SQLite database holding analysis history.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and applies
// the schema and pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Document operations ---

// UpsertDocument inserts a document or refreshes the one with the same
// content hash. Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (filename, format, content_hash, pages, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			pages = excluded.pages,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Filename, doc.Format, doc.ContentHash, doc.Pages, nullIfEmpty(doc.Metadata)); err != nil {
		return 0, err
	}

	// LastInsertId is not reliable after an upsert that hit the conflict path.
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE content_hash = ?", doc.ContentHash).Scan(&id)
	return id, err
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc := &Document{}
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, format, content_hash, pages, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Filename, &doc.Format, &doc.ContentHash,
		&doc.Pages, &metadata, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.Metadata = metadata.String
	return doc, nil
}

// --- Analysis operations ---

// InsertAnalysis records a completed analysis. DocumentID must refer to an
// existing document.
func (s *Store) InsertAnalysis(ctx context.Context, a Analysis) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (document_id, provider, model, markdown, raw_response, parsed, prompt_tokens, completion_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.DocumentID, a.Provider, a.Model, a.Markdown, a.RawResponse, a.Parsed, a.PromptTokens, a.CompletionTokens)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const analysisColumns = `
	a.id, a.document_id, d.filename, d.content_hash, a.provider, a.model,
	a.markdown, a.raw_response, a.parsed, a.prompt_tokens, a.completion_tokens, a.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(r rowScanner) (*Analysis, error) {
	a := &Analysis{}
	err := r.Scan(&a.ID, &a.DocumentID, &a.Filename, &a.ContentHash, &a.Provider, &a.Model,
		&a.Markdown, &a.RawResponse, &a.Parsed, &a.PromptTokens, &a.CompletionTokens, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetAnalysis retrieves an analysis by ID.
func (s *Store) GetAnalysis(ctx context.Context, id int64) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses a JOIN documents d ON d.id = a.document_id
		WHERE a.id = ?
	`, id)
	return scanAnalysis(row)
}

// LatestAnalysisByHash returns the newest analysis of the document with the
// given content hash.
func (s *Store) LatestAnalysisByHash(ctx context.Context, contentHash string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses a JOIN documents d ON d.id = a.document_id
		WHERE d.content_hash = ?
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT 1
	`, contentHash)
	return scanAnalysis(row)
}

// ListAnalyses returns up to limit analyses, newest first. Markdown and raw
// responses are omitted.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.document_id, d.filename, d.content_hash, a.provider, a.model,
			a.parsed, a.prompt_tokens, a.completion_tokens, a.created_at
		FROM analyses a JOIN documents d ON d.id = a.document_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.Filename, &a.ContentHash, &a.Provider, &a.Model,
			&a.Parsed, &a.PromptTokens, &a.CompletionTokens, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAnalysis removes one analysis. The document row is removed too
// when no other analysis references it.
func (s *Store) DeleteAnalysis(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var docID int64
		err := tx.QueryRowContext(ctx, "SELECT document_id FROM analyses WHERE id = ?", id).Scan(&docID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM documents WHERE id = ?
			AND NOT EXISTS (SELECT 1 FROM analyses WHERE document_id = ?)`, docID, docID)
		return err
	})
}

// PruneBefore deletes analyses created before cutoff along with documents
// left without analyses. Returns the number of analyses removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM analyses WHERE created_at < ?", cutoff.UTC().Format(sqliteTime))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM documents WHERE NOT EXISTS (
				SELECT 1 FROM analyses WHERE analyses.document_id = documents.id
			)`)
		return err
	})
	return removed, err
}

// DBStats holds row counts for the health endpoint and CLI.
type DBStats struct {
	Documents int `json:"documents"`
	Analyses  int `json:"analyses"`
}

// Stats returns counts of documents and analyses.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM analyses", &stats.Analyses},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
