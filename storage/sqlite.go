// Package storage persists diff records and thread messages.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/martinemde/kodit/diff"
)

// SQLite stores diffs and messages in a single SQLite database.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ diff.Storage = (*SQLite)(nil)
	_ MessageStore = (*SQLite)(nil)
)

// OpenSQLite opens (creating if needed) the database at path and brings its
// schema up to date. Use ":memory:" for a throwaway database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("database opened", "path", path, "schema_version", CurrentSchemaVersion)
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, in diff.SaveInput) (diff.Record, error) {
	rec := diff.Record{
		ID:        uuid.NewString(),
		ThreadID:  in.ThreadID,
		MessageID: in.MessageID,
		Summary:   in.Summary,
		CreatedAt: nowMillis(s.now),
		Files:     make([]diff.SnapshotChange, len(in.Files)),
	}
	for i, f := range in.Files {
		f.ChangeType = diff.ClassifyChange(f.OldContent, f.NewContent)
		rec.Files[i] = f
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return diff.Record{}, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO diffs (id, thread_id, message_id, summary, created_at_ms) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ThreadID, rec.MessageID, rec.Summary, rec.CreatedAt.UnixMilli())
	if err != nil {
		return diff.Record{}, fmt.Errorf("insert diff: %w", err)
	}
	for i, f := range rec.Files {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO diff_files (diff_id, position, file_path, change_type, old_content, new_content) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, i, f.FilePath, string(f.ChangeType), nullString(f.OldContent), nullString(f.NewContent))
		if err != nil {
			return diff.Record{}, fmt.Errorf("insert diff file %s: %w", f.FilePath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return diff.Record{}, fmt.Errorf("commit save: %w", err)
	}

	s.logger.Debug("diff saved", "thread_id", rec.ThreadID, "diff_id", rec.ID, "files", len(rec.Files))
	return rec, nil
}

func (s *SQLite) List(ctx context.Context, threadID string) ([]diff.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, summary, created_at_ms FROM diffs WHERE thread_id = ? ORDER BY created_at_ms, rowid`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("query diffs: %w", err)
	}
	defer rows.Close()

	var records []diff.Record
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec       diff.Record
			createdMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.MessageID, &rec.Summary, &createdMs); err != nil {
			return nil, fmt.Errorf("scan diff: %w", err)
		}
		rec.ThreadID = threadID
		rec.CreatedAt = time.UnixMilli(createdMs)
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diffs: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	fileRows, err := s.db.QueryContext(ctx,
		`SELECT f.diff_id, f.file_path, f.change_type, f.old_content, f.new_content
		FROM diff_files f JOIN diffs d ON d.id = f.diff_id
		WHERE d.thread_id = ? ORDER BY f.diff_id, f.position`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("query diff files: %w", err)
	}
	defer fileRows.Close()

	for fileRows.Next() {
		var (
			diffID, changeType string
			change             diff.SnapshotChange
			oldContent         sql.NullString
			newContent         sql.NullString
		)
		if err := fileRows.Scan(&diffID, &change.FilePath, &changeType, &oldContent, &newContent); err != nil {
			return nil, fmt.Errorf("scan diff file: %w", err)
		}
		change.ChangeType = diff.ChangeType(changeType)
		change.OldContent = stringPtr(oldContent)
		change.NewContent = stringPtr(newContent)
		i := index[diffID]
		records[i].Files = append(records[i].Files, change)
	}
	if err := fileRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diff files: %w", err)
	}
	return records, nil
}

func (s *SQLite) Clear(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM diff_files WHERE diff_id IN (SELECT id FROM diffs WHERE thread_id = ?)`, threadID); err != nil {
		return fmt.Errorf("delete diff files: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM diffs WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete diffs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}

	n, _ := res.RowsAffected()
	s.logger.Debug("diffs cleared", "thread_id", threadID, "count", n)
	return nil
}

func (s *SQLite) AddMessage(ctx context.Context, in MessageInput) (Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		ThreadID:  in.ThreadID,
		Role:      in.Role,
		Content:   in.Content,
		Reasoning: in.Reasoning,
		CreatedAt: nowMillis(s.now),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin add message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM messages WHERE thread_id = ?`, in.ThreadID).Scan(&last); err != nil {
		return Message{}, fmt.Errorf("query last sequence: %w", err)
	}
	msg.Sequence = last.Int64 + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, reasoning, created_at_ms, sequence) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.Role, msg.Content, msg.Reasoning, msg.CreatedAt.UnixMilli(), msg.Sequence)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit add message: %w", err)
	}
	return msg, nil
}

func (s *SQLite) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, reasoning, created_at_ms, sequence FROM messages
		WHERE thread_id = ? ORDER BY created_at_ms, sequence`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg       Message
			createdMs int64
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Reasoning, &createdMs, &msg.Sequence); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ThreadID = threadID
		msg.CreatedAt = time.UnixMilli(createdMs)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
