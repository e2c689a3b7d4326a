package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gaextractor/internal/domain"
	"gaextractor/pkg/logger"
	"gaextractor/pkg/metrics"

	"github.com/google/uuid"
)

// TableWriter stages report records as CSV files and uploads them to the
// storage sink. Staging files live for one (table, date-range) unit of work
// and are removed on every exit path.
type TableWriter struct {
	sink    domain.StorageSink
	tempDir string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewTableWriter(sink domain.StorageSink, tempDir string, logger *logger.Logger, metrics *metrics.Metrics) *TableWriter {
	return &TableWriter{
		sink:    sink,
		tempDir: tempDir,
		logger:  logger,
		metrics: metrics,
	}
}

// StagingFile is one temporary CSV file being assembled for upload.
type StagingFile struct {
	file        *os.File
	csv         *csv.Writer
	path        string
	table       string
	wroteHeader bool
	rows        int
	closed      bool
}

func (s *StagingFile) Path() string {
	return s.path
}

// Rows returns the number of data rows written so far, header excluded.
func (s *StagingFile) Rows() int {
	return s.rows
}

// Open creates a staging file for one table and profile.
func (w *TableWriter) Open(tableName string, profile domain.Profile) (*StagingFile, error) {
	name := fmt.Sprintf("%s-%s-%s.csv",
		strings.ReplaceAll(tableName, " ", "-"),
		strings.ReplaceAll(profile.GoogleID, "/", ""),
		uuid.New().String(),
	)

	path := filepath.Join(w.tempDir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	return &StagingFile{
		file:  file,
		csv:   csv.NewWriter(file),
		path:  path,
		table: tableName,
	}, nil
}

// WriteRow writes one raw CSV row. Used for auxiliary tables such as the
// per-account profiles summary.
func (w *TableWriter) WriteRow(staging *StagingFile, row []string) error {
	if err := staging.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write staging row: %w", err)
	}
	return nil
}

// Append encodes records into output rows and writes them to the staging
// file. Column order follows the configured dimension/metric order, never the
// record's own field order. The first Append of a file emits the header row.
//
// Each row's id hashes the profile external id together with the raw
// dimension values in configured order, so repeated extractions of the same
// dimension combination produce the same primary key. The date dimension is
// normalized to YYYY-MM-DD after hashing, in the output columns only.
func (w *TableWriter) Append(staging *StagingFile, records []domain.ResultRecord, profile domain.Profile, dimensions, metricNames []string) error {
	if !staging.wroteHeader {
		header := make([]string, 0, 2+len(dimensions)+len(metricNames))
		header = append(header, "id", "idProfile")
		header = append(header, dimensions...)
		header = append(header, metricNames...)

		if err := staging.csv.Write(header); err != nil {
			return fmt.Errorf("failed to write staging header: %w", err)
		}
		staging.wroteHeader = true
	}

	for _, record := range records {
		raw := make([]string, len(dimensions))
		for i, name := range dimensions {
			raw[i] = record.Dimension(name)
		}

		row := make([]string, 0, 2+len(dimensions)+len(metricNames))
		row = append(row, domain.RowID(profile.GoogleID, raw), profile.GoogleID)
		for i, name := range dimensions {
			value := raw[i]
			if name == "date" {
				value = domain.NormalizeDate(value)
			}
			row = append(row, value)
		}
		for _, name := range metricNames {
			row = append(row, record.Metric(name))
		}

		if err := staging.csv.Write(row); err != nil {
			return fmt.Errorf("failed to write staging row: %w", err)
		}
		staging.rows++
	}

	w.metrics.RecordRowsWritten(staging.table, len(records))
	return nil
}

// Upload flushes the staging file and loads it into the destination table,
// incrementally (upsert by primary key id) or as a full replace. The staging
// file is removed afterwards regardless of outcome.
func (w *TableWriter) Upload(ctx context.Context, staging *StagingFile, tableID string, incremental bool) error {
	defer w.Discard(staging)

	staging.csv.Flush()
	if err := staging.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush staging file: %w", err)
	}
	if err := staging.file.Close(); err != nil {
		return fmt.Errorf("failed to close staging file: %w", err)
	}
	staging.closed = true

	if err := w.sink.UploadTable(ctx, staging.path, tableID, "id", incremental); err != nil {
		return fmt.Errorf("failed to upload table %s: %w", tableID, err)
	}

	mode := "replace"
	if incremental {
		mode = "incremental"
	}
	w.metrics.RecordUpload(mode)

	w.logger.WithFields(map[string]any{
		"table":       tableID,
		"rows":        staging.rows,
		"incremental": incremental,
	}).Info("Uploaded table")

	return nil
}

// Discard closes and removes the staging file. Safe to call more than once.
func (w *TableWriter) Discard(staging *StagingFile) {
	if !staging.closed {
		staging.file.Close()
		staging.closed = true
	}
	if err := os.Remove(staging.path); err != nil && !os.IsNotExist(err) {
		w.logger.WithError(err).WithField("path", staging.path).Warn("Failed to remove staging file")
	}
}
