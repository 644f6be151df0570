package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sizhen/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "sizhen.db"

// Store is a unified SQLite-based storage that provides access to
// the report and progress store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sizhen/data/sizhen.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sizhen", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serialises progress read-modify-write
	// transactions, which SQLite would otherwise abort with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ReportStore returns a ReportStore interface backed by this store.
func (s *Store) ReportStore() driven.ReportStore {
	return &reportStore{store: s}
}

// ProgressStore returns a ProgressStore interface backed by this store.
func (s *Store) ProgressStore() driven.ProgressStore {
	return &progressStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Report Store ====================

// reportStore implements driven.ReportStore.
type reportStore struct {
	store *Store
}

var _ driven.ReportStore = (*reportStore)(nil)

// Save stores or replaces a report.
func (s *reportStore) Save(ctx context.Context, report domain.DiagnosisReport) error {
	if report.ID == "" {
		return fmt.Errorf("%w: report id is required", domain.ErrInvalidInput)
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO reports (id, user_id, session_id, status, confidence, created_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			session_id = excluded.session_id,
			status = excluded.status,
			confidence = excluded.confidence,
			created_at = excluded.created_at,
			body = excluded.body
	`, report.ID, report.UserID, report.SessionID, string(report.Status),
		report.Confidence, report.CreatedAt.UnixNano(), string(body))
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID.
func (s *reportStore) Get(ctx context.Context, id string) (*domain.DiagnosisReport, error) {
	var body string
	err := s.store.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	return decodeReport(body)
}

// ListBySession returns a session's reports, newest first.
func (s *reportStore) ListBySession(ctx context.Context, userID, sessionID string) ([]domain.DiagnosisReport, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT body FROM reports
		WHERE user_id = ? AND session_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.DiagnosisReport
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		report, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func decodeReport(body string) (*domain.DiagnosisReport, error) {
	var report domain.DiagnosisReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &report, nil
}

// ==================== Progress Store ====================

// progressStore implements driven.ProgressStore.
type progressStore struct {
	store *Store
}

var _ driven.ProgressStore = (*progressStore)(nil)

// Get returns the progress for a session.
func (s *progressStore) Get(ctx context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	return loadProgress(ctx, s.store.db, userID, sessionID)
}

// Update applies fn inside a transaction so concurrent updates to one
// session are serialised.
func (s *progressStore) Update(
	ctx context.Context,
	userID, sessionID string,
	fn func(*domain.DiagnosisProgress),
) (*domain.DiagnosisProgress, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	progress, err := loadProgress(ctx, tx, userID, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		progress = domain.NewDiagnosisProgress(userID, sessionID)
	} else if err != nil {
		return nil, err
	}

	fn(progress)

	body, err := json.Marshal(progress)
	if err != nil {
		return nil, fmt.Errorf("marshalling progress: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress (user_id, session_id, status, updated_at, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at,
			body = excluded.body
	`, userID, sessionID, string(progress.Status), progress.LastUpdated.UnixNano(), string(body))
	if err != nil {
		return nil, fmt.Errorf("saving progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing progress: %w", err)
	}
	return progress, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadProgress(ctx context.Context, q queryer, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	var body string
	err := q.QueryRowContext(ctx,
		`SELECT body FROM progress WHERE user_id = ? AND session_id = ?`,
		userID, sessionID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning progress: %w", err)
	}

	var progress domain.DiagnosisProgress
	if err := json.Unmarshal([]byte(body), &progress); err != nil {
		return nil, fmt.Errorf("unmarshaling progress: %w", err)
	}
	return &progress, nil
}
