package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/calibreport/internal/model"
	"github.com/nao1215/calibreport/internal/report"
)

// FileName is the archive file created inside the database directory.
const FileName = "calibreport.db"

// ErrEmptyName is returned when a report is saved without a name.
var ErrEmptyName = errors.New("report name must not be empty")

// ReportDB stores calibration reports in SQLite.
type ReportDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now returns the timestamp recorded for new rows.
	now func() time.Time
}

// Options configures ReportDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ReportDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ReportDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *ReportDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *ReportDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ReportDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		digest TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		overall_accuracy REAL,
		expected_calibration_error REAL NOT NULL,
		bin_count INTEGER NOT NULL,
		bin_strategy TEXT NOT NULL,
		report_json TEXT NOT NULL,
		UNIQUE(name, digest)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_name ON reports(name);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// ReportMetadata contains summary information about an archived report.
// It is used for listing history without decoding the full report.
type ReportMetadata struct {
	// ID is the row identifier, increasing with save order.
	ID int64

	// RunID is a random UUID assigned when the report was first saved.
	RunID string

	// Name groups reports that belong to the same history.
	Name string

	// Digest is the SHA3-256 of the canonical encoding.
	Digest string

	// Timestamp is when the report was first saved.
	Timestamp time.Time

	RecordCount              int
	OverallAccuracy          model.OptionalFloat
	ExpectedCalibrationError float64
	GeneratedWith            model.GeneratedWith
}

// StoredReport is an archived report with its metadata.
type StoredReport struct {
	Metadata ReportMetadata
	Report   *model.Report
}

// SaveReport archives r under name.
// Saving a report equal to one already stored under the same name stores
// nothing and returns the existing metadata. The check and the insert are one
// statement, so concurrent saves of the same report agree on a single row.
func (rdb *ReportDB) SaveReport(ctx context.Context, name string, r *model.Report) (*ReportMetadata, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	data, err := report.Encode(r)
	if err != nil {
		return nil, err
	}
	digest, err := report.Digest(r)
	if err != nil {
		return nil, err
	}

	meta := &ReportMetadata{
		RunID:                    uuid.NewString(),
		Name:                     name,
		Digest:                   digest,
		Timestamp:                rdb.now().UTC(),
		RecordCount:              r.RecordCount(),
		OverallAccuracy:          r.OverallAccuracy(),
		ExpectedCalibrationError: r.ExpectedCalibrationError(),
		GeneratedWith:            r.GeneratedWith(),
	}

	query := `
	INSERT INTO reports (run_id, name, digest, timestamp, record_count, overall_accuracy,
		expected_calibration_error, bin_count, bin_strategy, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name, digest) DO NOTHING
	`

	result, err := rdb.db.ExecContext(ctx, query,
		meta.RunID,
		meta.Name,
		meta.Digest,
		meta.Timestamp.Format(time.RFC3339Nano),
		meta.RecordCount,
		nullFloat(meta.OverallAccuracy),
		meta.ExpectedCalibrationError,
		meta.GeneratedWith.BinCount,
		string(meta.GeneratedWith.BinStrategy),
		string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read saved rows: %w", err)
	}
	if inserted == 0 {
		existing, err := rdb.metadataByDigest(ctx, name, digest)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("failed to save report: %s/%s neither inserted nor found", name, digest)
		}
		return existing, nil
	}

	meta.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read report id: %w", err)
	}
	return meta, nil
}

// metadataColumns lists the columns scanned by scanMetadata.
const metadataColumns = `id, run_id, name, digest, timestamp, record_count, overall_accuracy,
	expected_calibration_error, bin_count, bin_strategy`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(s rowScanner, extra ...any) (*ReportMetadata, error) {
	var meta ReportMetadata
	var timestamp, strategy string
	var accuracy sql.NullFloat64

	dest := []any{
		&meta.ID,
		&meta.RunID,
		&meta.Name,
		&meta.Digest,
		&timestamp,
		&meta.RecordCount,
		&accuracy,
		&meta.ExpectedCalibrationError,
		&meta.GeneratedWith.BinCount,
		&strategy,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	meta.Timestamp = parseTimestamp(timestamp)
	meta.GeneratedWith.BinStrategy = model.BinStrategy(strategy)
	if accuracy.Valid {
		meta.OverallAccuracy = model.Some(accuracy.Float64)
	}
	return &meta, nil
}

func (rdb *ReportDB) metadataByDigest(ctx context.Context, name, digest string) (*ReportMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM reports WHERE name = ? AND digest = ?`

	meta, err := scanMetadata(rdb.db.QueryRowContext(ctx, query, name, digest))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up report: %w", err)
	}
	return meta, nil
}

// getStored runs a single-row query selecting metadataColumns and report_json.
// It returns nil, nil when no row matches.
func (rdb *ReportDB) getStored(ctx context.Context, query string, args ...any) (*StoredReport, error) {
	var reportJSON string
	meta, err := scanMetadata(rdb.db.QueryRowContext(ctx, query, args...), &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	r, err := report.Decode(strings.NewReader(reportJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %d: %w", meta.ID, err)
	}
	return &StoredReport{Metadata: *meta, Report: r}, nil
}

// GetReportByID retrieves a report by its database ID.
// It returns nil, nil when no report has that ID.
func (rdb *ReportDB) GetReportByID(ctx context.Context, id int64) (*StoredReport, error) {
	query := `SELECT ` + metadataColumns + `, report_json FROM reports WHERE id = ?`
	return rdb.getStored(ctx, query, id)
}

// GetLatestReport retrieves the most recently saved report under name.
// It returns nil, nil when the name has no history.
func (rdb *ReportDB) GetLatestReport(ctx context.Context, name string) (*StoredReport, error) {
	query := `SELECT ` + metadataColumns + `, report_json FROM reports
	WHERE name = ?
	ORDER BY id DESC
	LIMIT 1`
	return rdb.getStored(ctx, query, name)
}

// GetHistory returns the metadata of every report saved under name,
// newest first.
func (rdb *ReportDB) GetHistory(ctx context.Context, name string) ([]ReportMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM reports
	WHERE name = ?
	ORDER BY id DESC`

	rows, err := rdb.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		results = append(results, *meta)
	}

	return results, rows.Err()
}

// ListNames returns every report name in the archive, sorted.
func (rdb *ReportDB) ListNames(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT name FROM reports ORDER BY name`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func nullFloat(o model.OptionalFloat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: o.Value, Valid: o.Valid}
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
