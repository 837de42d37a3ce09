// Package sqlite provides the persistent behavior store backed by an
// embedded SQLite database in WAL mode. One database file holds every
// behavior table plus the ingest reconcile log; schema changes ship
// as embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/helixbi/querypilot/internal/adapters/driven/behavior/sqlite/migrations"
	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.BehaviorStore = (*Store)(nil)
	_ driven.ReconcileLog  = (*Store)(nil)
)

// Config holds behavior store settings.
type Config struct {
	// DataDir holds the database file. Empty defaults to
	// ~/.querypilot/data.
	DataDir string

	// HistoryCap bounds each user's history list (default 100).
	HistoryCap int

	// PreferenceTTL expires the per-query last selection. Zero means
	// no expiry.
	PreferenceTTL time.Duration
}

// Store is a SQLite-backed implementation of driven.BehaviorStore and
// driven.ReconcileLog.
type Store struct {
	db         *sql.DB
	path       string
	historyCap int
	ttl        time.Duration
}

// NewStore opens (creating if needed) the behavior database.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".querypilot", "data")
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 100
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "behavior.db")

	// WAL mode keeps readers unblocked during feedback writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		historyCap: cfg.HistoryCap,
		ttl:        cfg.PreferenceTTL,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// migrate runs all pending migrations.
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
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
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

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordSelection records one feedback event in a single transaction.
func (s *Store) RecordSelection(ctx context.Context, sel domain.Selection) error {
	if sel.UserID == "" || sel.Query == "" || sel.Selected == "" {
		return domain.ErrInvalidInput
	}
	at := sel.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Sequence edges link the previous distinct query to this one,
	// read before the new entry lands.
	var prevQuery string
	err = tx.QueryRowContext(ctx,
		"SELECT query FROM history WHERE user_id = ? ORDER BY id DESC LIMIT 1",
		sel.UserID).Scan(&prevQuery)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading previous query: %w", err)
	}
	if prevQuery != "" && prevQuery != sel.Query {
		for _, scope := range []string{"", sel.UserID} {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sequence_edge (scope, prev_query, next_query, weight)
				VALUES (?, ?, ?, 1)
				ON CONFLICT(scope, prev_query, next_query)
					DO UPDATE SET weight = weight + 1
			`, scope, prevQuery, sel.Query)
			if err != nil {
				return fmt.Errorf("incrementing sequence edge: %w", err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO history (user_id, query, selected, at) VALUES (?, ?, ?, ?)",
		sel.UserID, sel.Query, sel.Selected, at); err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}

	// Truncate to the newest historyCap entries.
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM history WHERE user_id = ? AND id NOT IN (
			SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)
	`, sel.UserID, sel.UserID, s.historyCap); err != nil {
		return fmt.Errorf("truncating history: %w", err)
	}

	var expires any
	if s.ttl > 0 {
		expires = at.Add(s.ttl)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO last_selection (user_id, query, selected, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, query)
			DO UPDATE SET selected = excluded.selected, expires_at = excluded.expires_at
	`, sel.UserID, sel.Query, sel.Selected, expires); err != nil {
		return fmt.Errorf("storing last selection: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO preference (user_id, selected, score) VALUES (?, ?, 1)
		ON CONFLICT(user_id, selected) DO UPDATE SET score = score + 1
	`, sel.UserID, sel.Selected); err != nil {
		return fmt.Errorf("incrementing preference: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO popularity (query, selected, score) VALUES (?, ?, 1)
		ON CONFLICT(query, selected) DO UPDATE SET score = score + 1
	`, sel.Query, sel.Selected); err != nil {
		return fmt.Errorf("incrementing popularity: %w", err)
	}

	return tx.Commit()
}

// UserPreferences returns the user's most-selected texts.
func (s *Store) UserPreferences(ctx context.Context, userID string, topM int) ([]domain.ScoredText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT selected, score FROM preference
		WHERE user_id = ?
		ORDER BY score DESC, selected ASC
		LIMIT ?
	`, userID, boundedLimit(topM))
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	return scanScoredTexts(rows)
}

// LastSelection returns the text last selected for this exact query.
func (s *Store) LastSelection(ctx context.Context, userID, query string) (string, error) {
	var selected string
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT selected, expires_at FROM last_selection WHERE user_id = ? AND query = ?",
		userID, query).Scan(&selected, &expires)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying last selection: %w", err)
	}
	if expires.Valid && time.Now().After(expires.Time) {
		return "", domain.ErrNotFound
	}
	return selected, nil
}

// Sequences returns the learned session neighbours of a query.
func (s *Store) Sequences(ctx context.Context, query, userID string, limit int) (domain.QuerySequences, error) {
	var seq domain.QuerySequences

	// Per-user edges override global weights on duplicate texts; the
	// user scope sorts after '' so its value wins in the merge map.
	next := make(map[string]float64)
	scopes := []string{""}
	if userID != "" {
		scopes = append(scopes, userID)
	}
	for _, scope := range scopes {
		rows, err := s.db.QueryContext(ctx, `
			SELECT next_query, weight FROM sequence_edge
			WHERE scope = ? AND prev_query = ?
		`, scope, query)
		if err != nil {
			return seq, fmt.Errorf("querying next edges: %w", err)
		}
		scored, err := scanScoredTexts(rows)
		rows.Close()
		if err != nil {
			return seq, err
		}
		for _, st := range scored {
			next[st.Text] = st.Score
		}
	}
	seq.Next = sortCounts(next, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT prev_query, weight FROM sequence_edge
		WHERE scope = '' AND next_query = ?
		ORDER BY weight DESC, prev_query ASC
		LIMIT ?
	`, query, boundedLimit(limit))
	if err != nil {
		return seq, fmt.Errorf("querying previous edges: %w", err)
	}
	defer rows.Close()

	seq.Previous, err = scanScoredTexts(rows)
	return seq, err
}

// RecentSelections returns texts the user selected for this query,
// newest first.
func (s *Store) RecentSelections(ctx context.Context, userID, query string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT selected FROM history
		WHERE user_id = ? AND query = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, query, boundedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying recent selections: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var selected string
		if err := rows.Scan(&selected); err != nil {
			return nil, fmt.Errorf("scanning selection: %w", err)
		}
		out = append(out, selected)
	}
	return out, rows.Err()
}

// History returns the user's selection history, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, selected, at FROM history
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, boundedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.Query, &entry.Selected, &entry.At); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Record appends one half-failure entry to the reconcile log.
func (s *Store) Record(ctx context.Context, entry driven.ReconcileEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_log (doc_id, missing_leg, reason, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.DocID, entry.MissingLeg, entry.Reason, at)
	if err != nil {
		return fmt.Errorf("recording reconcile entry: %w", err)
	}
	return nil
}

// Pending returns unresolved reconcile entries, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]driven.ReconcileEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, missing_leg, reason, created_at FROM reconcile_log
		WHERE resolved = 0
		ORDER BY id ASC
		LIMIT ?
	`, boundedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying reconcile log: %w", err)
	}
	defer rows.Close()

	var out []driven.ReconcileEntry
	for rows.Next() {
		var entry driven.ReconcileEntry
		if err := rows.Scan(&entry.ID, &entry.DocID, &entry.MissingLeg, &entry.Reason, &entry.At); err != nil {
			return nil, fmt.Errorf("scanning reconcile entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Resolve marks a reconcile entry repaired.
func (s *Store) Resolve(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE reconcile_log SET resolved = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("resolving reconcile entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping validates the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// boundedLimit maps non-positive limits to a generous default so
// LIMIT clauses stay well-formed.
func boundedLimit(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}

// scanScoredTexts drains a (text, score) row set.
func scanScoredTexts(rows *sql.Rows) ([]domain.ScoredText, error) {
	var out []domain.ScoredText
	for rows.Next() {
		var st domain.ScoredText
		if err := rows.Scan(&st.Text, &st.Score); err != nil {
			return nil, fmt.Errorf("scanning scored text: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// sortCounts converts a counter map to a bounded descending list with
// the deterministic tiebreak (score desc, text asc).
func sortCounts(counts map[string]float64, limit int) []domain.ScoredText {
	if len(counts) == 0 {
		return nil
	}
	out := make([]domain.ScoredText, 0, len(counts))
	for text, score := range counts {
		out = append(out, domain.ScoredText{Text: text, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
