package infrastructure

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gaextractor/pkg/logger"

	_ "github.com/mattn/go-sqlite3"
)

// implements domain.StorageSink on sqlite: buckets are registry rows, tables
// are real sqlite tables keyed by the CSV's primary-key column, so an
// incremental upload is an upsert and a full upload is a rebuild.
type SQLiteSink struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewSQLiteSink(dsn string, logger *logger.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS buckets (
		id          TEXT PRIMARY KEY,
		stage       TEXT,
		description TEXT,
		created_at  TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init sink schema: %w", err)
	}

	return &SQLiteSink{db: db, logger: logger}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) BucketExists(ctx context.Context, bucketID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM buckets WHERE id = ?`, bucketID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %s: %w", bucketID, err)
	}
	return true, nil
}

func (s *SQLiteSink) CreateBucket(ctx context.Context, name, stage, description string) (string, error) {
	bucketID := stage + ".c-" + name
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO buckets (id, stage, description, created_at) VALUES (?, ?, ?, ?)`,
		bucketID, stage, description, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create bucket %s: %w", bucketID, err)
	}

	s.logger.WithField("bucket", bucketID).Info("Created bucket")
	return bucketID, nil
}

func (s *SQLiteSink) TableExists(ctx context.Context, tableID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, tableID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", tableID, err)
	}
	return true, nil
}

// UploadTable loads a staged CSV into the destination table. Incremental
// mode upserts by the primary-key column; otherwise the table is rebuilt
// from scratch.
func (s *SQLiteSink) UploadTable(ctx context.Context, csvPath, tableID, primaryKey string, incremental bool) error {
	file, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open staged csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read csv header: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to upload table %s: %w", tableID, err)
	}
	defer tx.Rollback()

	if !incremental {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(tableID)); err != nil {
			return fmt.Errorf("failed to replace table %s: %w", tableID, err)
		}
	}

	columns := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, name := range header {
		columns[i] = quoteIdent(name) + " TEXT"
		placeholders[i] = "?"
	}
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))`,
		quoteIdent(tableID), strings.Join(columns, ", "), quoteIdent(primaryKey))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableID, err)
	}

	names := make([]string, len(header))
	for i, name := range header {
		names[i] = quoteIdent(name)
	}
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`,
		quoteIdent(tableID), strings.Join(names, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("failed to upload table %s: %w", tableID, err)
	}
	defer insert.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read staged csv: %w", err)
		}

		values := make([]any, len(record))
		for i, v := range record {
			values[i] = v
		}
		if _, err := insert.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", tableID, err)
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to upload table %s: %w", tableID, err)
	}

	s.logger.WithFields(map[string]any{
		"table":       tableID,
		"rows":        rows,
		"incremental": incremental,
	}).Info("Loaded table")

	return nil
}

// CountRows reports the number of rows in a destination table.
func (s *SQLiteSink) CountRows(ctx context.Context, tableID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(tableID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", tableID, err)
	}
	return count, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
