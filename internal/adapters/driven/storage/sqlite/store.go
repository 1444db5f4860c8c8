package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.dossier/data/dossier.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".dossier", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dossier.db")

	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer connection; status changes read then write in a transaction.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  func() time.Time { return time.Now().UTC() },
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

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// InsightStore returns an InsightStore interface backed by this store.
func (s *Store) InsightStore() driven.InsightStore {
	return &insightStore{store: s}
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys embed.FS) error {
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
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
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

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Source Store ====================

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

const sourceColumns = `id, owner_id, client_id, kind, name, origin, mime_type, content, summary,
	status, last_error, exclude_from_rag, category, created_at, updated_at`

// Create stores a new source.
func (s *sourceStore) Create(ctx context.Context, source *domain.Source) error {
	if source == nil {
		return domain.ErrInvalidInput
	}
	if source.Status == "" {
		source.Status = domain.StatusPending
	}
	if err := source.Validate(); err != nil {
		return err
	}

	now := s.store.now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, source.ID, source.OwnerID, nullString(source.ClientID), string(source.Kind), source.Name,
		source.Origin, source.MIMEType, nullString(source.Content), nullString(source.Summary),
		string(source.Status), nullString(source.LastError), source.ExcludeFromRag,
		nullString(source.Category), source.CreatedAt, source.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id, ownerID string) (*domain.Source, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE id = ? AND owner_id = ?", id, ownerID)
	return scanSource(row)
}

// List returns sources matching the filter, newest first.
func (s *sourceStore) List(ctx context.Context, filter domain.SourceFilter) ([]domain.Source, error) {
	if filter.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrInvalidInput)
	}

	where, args := scopeClause("", domain.Scope{
		OwnerID:  filter.OwnerID,
		ClientID: filter.ClientID,
		Kinds:    filter.Kinds,
	})
	if len(filter.Statuses) > 0 {
		where += " AND status IN (" + placeholders(len(filter.Statuses)) + ")"
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}

	query := "SELECT " + sourceColumns + " FROM sources WHERE " + where + " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// UpdateContent sets the extracted content.
func (s *sourceStore) UpdateContent(ctx context.Context, id, ownerID, text string) error {
	return s.exec(ctx, "updating content",
		"UPDATE sources SET content = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		text, s.store.now(), id, ownerID)
}

// SetSummary records a generated summary.
func (s *sourceStore) SetSummary(ctx context.Context, id, ownerID, summary string) error {
	return s.exec(ctx, "setting summary",
		"UPDATE sources SET summary = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		summary, s.store.now(), id, ownerID)
}

// SetGovernance sets the retrieval exclusion flag and category.
// Including a source clears its category.
func (s *sourceStore) SetGovernance(ctx context.Context, id, ownerID string, exclude bool, category string) error {
	if !exclude {
		category = ""
	}
	return s.exec(ctx, "setting governance",
		"UPDATE sources SET exclude_from_rag = ?, category = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		exclude, nullString(domain.StringPtr(category)), s.store.now(), id, ownerID)
}

// BeginReprocess resets the source to processing from any state.
func (s *sourceStore) BeginReprocess(ctx context.Context, id, ownerID string) error {
	return s.exec(ctx, "resetting source",
		"UPDATE sources SET status = ?, last_error = NULL, updated_at = ? WHERE id = ? AND owner_id = ?",
		string(domain.StatusProcessing), s.store.now(), id, ownerID)
}

// SetStatus moves the source to status when the current state allows it.
func (s *sourceStore) SetStatus(ctx context.Context, id, ownerID string, status domain.SourceStatus) error {
	return s.transition(ctx, id, ownerID, status, nil)
}

// SetError marks the source failed with message.
func (s *sourceStore) SetError(ctx context.Context, id, ownerID, message string) error {
	if message == "" {
		message = "unknown error"
	}
	return s.transition(ctx, id, ownerID, domain.StatusFailed, &message)
}

// Delete removes the source; chunks and insights cascade.
func (s *sourceStore) Delete(ctx context.Context, id, ownerID string) error {
	return s.exec(ctx, "deleting source", "DELETE FROM sources WHERE id = ? AND owner_id = ?", id, ownerID)
}

func (s *sourceStore) transition(
	ctx context.Context, id, ownerID string, next domain.SourceStatus, lastError *string,
) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, next)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		current  string
		content  sql.NullString
		excluded bool
	)
	err = tx.QueryRowContext(ctx,
		"SELECT status, content, exclude_from_rag FROM sources WHERE id = ? AND owner_id = ?",
		id, ownerID).Scan(&current, &content, &excluded)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	from := domain.SourceStatus(current)
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, next)
	}
	if next == domain.StatusCompleted && !content.Valid && !excluded {
		return fmt.Errorf("%w: completed source has no content", domain.ErrInvalidInput)
	}

	if lastError != nil {
		_, err = tx.ExecContext(ctx,
			"UPDATE sources SET status = ?, last_error = ?, updated_at = ? WHERE id = ?",
			string(next), *lastError, s.store.now(), id)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE sources SET status = ?, updated_at = ? WHERE id = ?",
			string(next), s.store.now(), id)
	}
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status: %w", err)
	}
	return nil
}

// exec runs an owner-scoped update and maps "no row" to domain.ErrNotFound.
func (s *sourceStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var source domain.Source
	var clientID, content, summary, lastError, category sql.NullString
	var kind, status string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&source.ID, &source.OwnerID, &clientID, &kind, &source.Name, &source.Origin,
		&source.MIMEType, &content, &summary, &status, &lastError, &source.ExcludeFromRag,
		&category, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	source.Kind = domain.SourceKind(kind)
	source.Status = domain.SourceStatus(status)
	source.ClientID = stringPtr(clientID)
	source.Content = stringPtr(content)
	source.Summary = stringPtr(summary)
	source.LastError = stringPtr(lastError)
	source.Category = stringPtr(category)
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}
	return &source, nil
}

// ==================== Helpers ====================

// scopeClause builds the owner, client and kind filter for a table alias.
// A nil client matches every client of the owner.
func scopeClause(alias string, scope domain.Scope) (string, []any) {
	if alias != "" {
		alias += "."
	}
	where := alias + "owner_id = ?"
	args := []any{scope.OwnerID}

	if scope.ClientID != nil {
		if *scope.ClientID == "" {
			where += " AND " + alias + "client_id IS NULL"
		} else {
			where += " AND " + alias + "client_id = ?"
			args = append(args, *scope.ClientID)
		}
	}
	if len(scope.Kinds) > 0 {
		where += " AND " + alias + "kind IN (" + placeholders(len(scope.Kinds)) + ")"
		for _, k := range scope.Kinds {
			args = append(args, string(k))
		}
	}
	return where, args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// nullString converts an optional string for storage.
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
	v := ns.String
	return &v
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// embeddingValue stores empty vectors as NULL.
func embeddingValue(floats []float32) any {
	if len(floats) == 0 {
		return nil
	}
	return float32SliceToBytes(floats)
}
