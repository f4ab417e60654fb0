package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xqbot/vmbot/internal/platform/storage/sqlitemigrate"
	"github.com/xqbot/vmbot/internal/services/vmbot/storage"
	"github.com/xqbot/vmbot/internal/services/vmbot/storage/sqlite/migrations"
)

// Store provides SQLite-backed journal persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the journal store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordCase persists one closed report.
func (s *Store) RecordCase(ctx context.Context, record storage.CaseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.Subject = strings.TrimSpace(record.Subject)
	record.Admin = strings.TrimSpace(record.Admin)
	record.Project = strings.TrimSpace(record.Project)
	if record.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if record.Project == "" {
		return fmt.Errorf("project is required")
	}
	if record.ClosedAt.IsZero() {
		record.ClosedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO closed_cases (subject, admin, duration, reason, project, closed_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		record.Subject,
		record.Admin,
		record.Duration,
		record.Reason,
		record.Project,
		record.ClosedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record case: %w", err)
	}
	return nil
}

// RecordNotice persists one sent talk-page notification.
func (s *Store) RecordNotice(ctx context.Context, record storage.NoticeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.Defendant = strings.TrimSpace(record.Defendant)
	record.Accuser = strings.TrimSpace(record.Accuser)
	record.Project = strings.TrimSpace(record.Project)
	if record.Defendant == "" {
		return fmt.Errorf("defendant is required")
	}
	if record.Accuser == "" {
		return fmt.Errorf("accuser is required")
	}
	if record.Project == "" {
		return fmt.Errorf("project is required")
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sent_notices (defendant, accuser, signature_time, section, project, sent_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		record.Defendant,
		record.Accuser,
		record.SignatureTime,
		record.Section,
		record.Project,
		record.SentAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record notice: %w", err)
	}
	return nil
}

// ListCases lists newest-first closed-case records.
func (s *Store) ListCases(ctx context.Context, limit int) ([]storage.CaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, subject, admin, duration, reason, project, closed_at
FROM closed_cases
ORDER BY closed_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	records := make([]storage.CaseRecord, 0, limit)
	for rows.Next() {
		var record storage.CaseRecord
		var closedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.Subject,
			&record.Admin,
			&record.Duration,
			&record.Reason,
			&record.Project,
			&closedAt,
		); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		record.ClosedAt = time.UnixMilli(closedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return records, nil
}

// ListNotices lists newest-first notification records.
func (s *Store) ListNotices(ctx context.Context, limit int) ([]storage.NoticeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, defendant, accuser, signature_time, section, project, sent_at
FROM sent_notices
ORDER BY sent_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	records := make([]storage.NoticeRecord, 0, limit)
	for rows.Next() {
		var record storage.NoticeRecord
		var sentAt int64
		if err := rows.Scan(
			&record.ID,
			&record.Defendant,
			&record.Accuser,
			&record.SignatureTime,
			&record.Section,
			&record.Project,
			&sentAt,
		); err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		record.SentAt = time.UnixMilli(sentAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notices: %w", err)
	}
	return records, nil
}

var _ storage.Journal = (*Store)(nil)
