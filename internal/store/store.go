// Package store persists session state in SQLite between CLI invocations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"agentctl/internal/domain"
	"agentctl/internal/state"
)

const (
	keyDataset  = "dataset"
	keyIndexDir = "index_dir"
)

// SQLiteStore implements state.Journal.
type SQLiteStore struct {
	db          *sql.DB
	maxMessages int
	logger      *slog.Logger
}

var _ state.Journal = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at dbPath. When maxMessages is
// positive only the newest maxMessages messages are kept.
func NewSQLiteStore(dbPath string, maxMessages int, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, maxMessages: maxMessages, logger: logger}, nil
}

func (s *SQLiteStore) setKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano(),
	)
	return err
}

func (s *SQLiteStore) deleteKV(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_kv WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) getKV(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SaveDataset stores d as JSON. A nil dataset removes the stored one.
func (s *SQLiteStore) SaveDataset(ctx context.Context, d *domain.TabularDataset) error {
	if d == nil {
		return s.deleteKV(ctx, keyDataset)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return s.setKV(ctx, keyDataset, string(data))
}

// SetIndexDir stores the index token. An empty dir removes it.
func (s *SQLiteStore) SetIndexDir(ctx context.Context, dir string) error {
	if dir == "" {
		return s.deleteKV(ctx, keyIndexDir)
	}
	return s.setKV(ctx, keyIndexDir, dir)
}

// SaveDocument inserts doc or updates the row with the same id, keeping its
// original position.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc domain.PdfDocument) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, path, size, pages, processed, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, path = excluded.path, size = excluded.size,
			pages = excluded.pages, processed = excluded.processed`,
		doc.ID, doc.Name, doc.Path, doc.Size, doc.Pages, doc.Processed, doc.UploadedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ClearDocuments(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg domain.ChatMessage) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.ID, string(msg.Role), msg.Content, msg.Timestamp.UnixNano(),
	); err != nil {
		return err
	}
	if s.maxMessages <= 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE seq NOT IN (SELECT seq FROM messages ORDER BY seq DESC LIMIT ?)`,
		s.maxMessages,
	)
	if err != nil {
		return fmt.Errorf("trim messages: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("trimmed message history", "removed", n, "max", s.maxMessages)
	}
	return nil
}

func (s *SQLiteStore) AppendResult(ctx context.Context, r domain.AnalysisResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (type, sub_type, content, created_at) VALUES (?, ?, ?, ?)`,
		r.Type, r.SubType, r.Content, r.Timestamp.UnixNano(),
	)
	return err
}

// Reset wipes all session tables in one transaction.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, table := range []string{"session_kv", "messages", "results", "documents"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Load reads the whole session back.
func (s *SQLiteStore) Load(ctx context.Context) (*state.Snapshot, error) {
	snap := &state.Snapshot{}

	if raw, ok, err := s.getKV(ctx, keyDataset); err != nil {
		return nil, err
	} else if ok {
		var d domain.TabularDataset
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			s.logger.Warn("stored dataset is unreadable, ignoring", "err", err)
		} else {
			snap.Dataset = &d
		}
	}

	dir, _, err := s.getKV(ctx, keyIndexDir)
	if err != nil {
		return nil, err
	}
	snap.IndexDir = dir

	if snap.Documents, err = s.documents(ctx); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if snap.Messages, err = s.messages(ctx); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if snap.Results, err = s.results(ctx); err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) documents(ctx context.Context) ([]domain.PdfDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, size, pages, processed, uploaded_at FROM documents ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.PdfDocument
	for rows.Next() {
		var d domain.PdfDocument
		var uploaded int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.Size, &d.Pages, &d.Processed, &uploaded); err != nil {
			return nil, err
		}
		d.UploadedAt = time.Unix(0, uploaded)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) messages(ctx context.Context) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, created_at FROM messages ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var role string
		var created int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.Timestamp = time.Unix(0, created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) results(ctx context.Context) ([]domain.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, sub_type, content, created_at FROM results ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		var r domain.AnalysisResult
		var sub sql.NullString
		var created int64
		if err := rows.Scan(&r.Type, &sub, &r.Content, &created); err != nil {
			return nil, err
		}
		r.SubType = sub.String
		r.Timestamp = time.Unix(0, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
