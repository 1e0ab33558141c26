package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
	_ "modernc.org/sqlite"
)

// Column types are chosen so the same DDL runs on MySQL and SQLite
const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id         VARCHAR(64)  NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL,
	data       LONGTEXT     NOT NULL,
	created_at BIGINT       NOT NULL,
	updated_at BIGINT       NOT NULL
);
CREATE TABLE IF NOT EXISTS generations (
	id             VARCHAR(64)  NOT NULL PRIMARY KEY,
	run_id         VARCHAR(64)  NOT NULL DEFAULT '',
	template_id    VARCHAR(64)  NOT NULL,
	row_index      INT          NOT NULL,
	recipient_name VARCHAR(255) NOT NULL,
	status         VARCHAR(32)  NOT NULL,
	file_url       TEXT,
	error          TEXT,
	metadata       LONGTEXT,
	created_at     BIGINT       NOT NULL
);`

// SQLStore persists templates and history through database/sql. Templates
// are stored as their JSON document.
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OpenSQL connects to a MySQL or SQLite database and creates the tables
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "mysql" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == "mysql" {
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	} else {
		// A single connection keeps in-memory SQLite databases shared
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("store opened", "driver", driver, "dsn", RedactDSN(driver, dsn))
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// List returns every template, newest first
func (s *SQLStore) List(ctx context.Context) ([]*certformat.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data, created_at, updated_at FROM templates ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var result []*certformat.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Get returns one template
func (s *SQLStore) Get(ctx context.Context, id string) (*certformat.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM templates WHERE id = ?`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, certformat.ErrTemplateNotFound)
	}
	return t, err
}

// Create inserts a new template
func (s *SQLStore) Create(ctx context.Context, t *certformat.Template) (*certformat.Template, error) {
	if err := certformat.Validate(t); err != nil {
		return nil, err
	}

	stored := t.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	stored.CreatedAt, stored.UpdatedAt = now, now

	data, err := stored.ToJSON()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates WHERE id = ?`, stored.ID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check template: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("template %s: %w", stored.ID, ErrTemplateExists)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		stored.ID, stored.Name, string(data), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update replaces an existing template, keeping its creation time
func (s *SQLStore) Update(ctx context.Context, t *certformat.Template) (*certformat.Template, error) {
	if err := certformat.Validate(t); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	stored := t.Clone()
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	data, err := stored.ToJSON()
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, data = ?, updated_at = ? WHERE id = ?`,
		stored.Name, string(data), stored.UpdatedAt.UnixMilli(), stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return stored, nil
}

// Delete removes a template
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template %s: %w", id, certformat.ErrTemplateNotFound)
	}
	return nil
}

// CreateGeneration inserts a history record
func (s *SQLStore) CreateGeneration(ctx context.Context, rec *GenerationRecord) (*GenerationRecord, error) {
	stored := cloneRecord(rec)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	stored.CreatedAt = stored.CreatedAt.Truncate(time.Millisecond)

	var metadata []byte
	if stored.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(stored.Metadata); err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (id, run_id, template_id, row_index, recipient_name, status, file_url, error, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.RunID, stored.TemplateID, stored.RowIndex, stored.RecipientName,
		stored.Status, stored.FileURL, stored.Error, string(metadata), stored.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert generation: %w", err)
	}
	return stored, nil
}

// ListGenerations returns history newest first
func (s *SQLStore) ListGenerations(ctx context.Context, limit int) ([]*GenerationRecord, error) {
	query := `SELECT id, run_id, template_id, row_index, recipient_name, status, file_url, error, metadata, created_at
		FROM generations ORDER BY created_at DESC, row_index DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var result []*GenerationRecord
	for rows.Next() {
		var (
			rec                       GenerationRecord
			fileURL, errMsg, metadata sql.NullString
			createdAt                 int64
		)
		err := rows.Scan(&rec.ID, &rec.RunID, &rec.TemplateID, &rec.RowIndex, &rec.RecipientName,
			&rec.Status, &fileURL, &errMsg, &metadata, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		rec.FileURL = fileURL.String
		rec.Error = errMsg.String
		if metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		result = append(result, &rec)
	}
	return result, rows.Err()
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row scanner) (*certformat.Template, error) {
	var (
		data                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t, err := certformat.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("stored template is corrupt: %w", err)
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}

// RedactDSN hides the password of a MySQL DSN for logging
func RedactDSN(driver, dsn string) string {
	if driver != "mysql" {
		return dsn
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "****"
	}
	return cfg.FormatDSN()
}
