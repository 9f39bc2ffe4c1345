package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wordspider/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "wordspider.db"

var (
	// ErrSessionNotFound is returned when no session matches an id or prefix.
	ErrSessionNotFound = errors.New("crawl session not found")

	// ErrAmbiguousSession is returned when an id prefix matches more than one session.
	ErrAmbiguousSession = errors.New("session id prefix is ambiguous")
)

// EntryKind names one of the lists stored per session.
type EntryKind string

// Entry kinds.
const (
	EntryWord  EntryKind = "word"
	EntryEmail EntryKind = "email"
	EntryURL   EntryKind = "url"
)

// CrawlDB is the crawl history store.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and file when missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions creates the database on demand and enables WAL.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the history database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_sessions (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		host TEXT NOT NULL,
		strategy TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		words INTEGER NOT NULL DEFAULT 0,
		emails INTEGER NOT NULL DEFAULT 0,
		urls INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_host ON crawl_sessions(host);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON crawl_sessions(started_at);

	CREATE TABLE IF NOT EXISTS session_entries (
		session_id TEXT NOT NULL REFERENCES crawl_sessions(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (session_id, kind, value)
	);
	`
	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SessionInput is everything stored for one crawl.
type SessionInput struct {
	Summary *model.Summary
	Words   []string
	Emails  []string
	URLs    []string
}

// SessionMeta describes a stored session without its entries.
type SessionMeta struct {
	ID          string
	Target      string
	Host        string
	Strategy    string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
	Words       int
	Emails      int
	URLs        int
}

// Session is a stored session with its full summary.
type Session struct {
	SessionMeta
	Summary *model.Summary
}

// SaveSession stores a crawl in a single transaction and returns its id.
func (cdb *CrawlDB) SaveSession(ctx context.Context, in SessionInput) (string, error) {
	if in.Summary == nil {
		return "", errors.New("session summary is nil")
	}
	summaryJSON, err := json.Marshal(in.Summary)
	if err != nil {
		return "", fmt.Errorf("failed to serialize summary: %w", err)
	}

	id := uuid.NewString()
	s := in.Summary

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_sessions (id, target, host, strategy, started_at, finished_at, interrupted, words, emails, urls, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.Target, hostOf(s.Target), s.Strategy,
		formatTimestamp(s.StartedAt), formatTimestamp(s.FinishedAt),
		s.Interrupted, len(in.Words), len(in.Emails), len(in.URLs),
		string(summaryJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO session_entries (session_id, kind, value) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for kind, values := range map[EntryKind][]string{
		EntryWord:  in.Words,
		EntryEmail: in.Emails,
		EntryURL:   in.URLs,
	} {
		for _, v := range values {
			if _, err := stmt.ExecContext(ctx, id, string(kind), v); err != nil {
				return "", fmt.Errorf("failed to insert %s entry: %w", kind, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

const metaColumns = `id, target, host, strategy, started_at, finished_at, interrupted, words, emails, urls`

// ListSessions returns sessions newest first. A non-empty host restricts
// the list to crawls of that host; limit <= 0 means no limit.
func (cdb *CrawlDB) ListSessions(ctx context.Context, host string, limit int) ([]SessionMeta, error) {
	query := `SELECT ` + metaColumns + ` FROM crawl_sessions WHERE 1=1`
	args := make([]any, 0, 2)
	if host != "" {
		query += " AND host = ?"
		args = append(args, strings.ToLower(host))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionMeta
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ResolveID expands a unique id prefix to the full session id.
func (cdb *CrawlDB) ResolveID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", ErrSessionNotFound
	}

	rows, err := cdb.db.QueryContext(ctx, `SELECT id FROM crawl_sessions WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve session id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousSession, prefix)
	}
}

// GetSession loads a session by full id.
func (cdb *CrawlDB) GetSession(ctx context.Context, id string) (*Session, error) {
	row := cdb.db.QueryRowContext(ctx, `SELECT `+metaColumns+`, summary_json FROM crawl_sessions WHERE id = ?`, id)

	var (
		sess        Session
		started     string
		finished    string
		summaryJSON string
	)
	err := row.Scan(&sess.ID, &sess.Target, &sess.Host, &sess.Strategy, &started, &finished,
		&sess.Interrupted, &sess.Words, &sess.Emails, &sess.URLs, &summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.StartedAt = parseTimestamp(started)
	sess.FinishedAt = parseTimestamp(finished)

	var summary model.Summary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	sess.Summary = &summary
	return &sess, nil
}

// LatestSession returns the newest session of host other than excludeID.
func (cdb *CrawlDB) LatestSession(ctx context.Context, host, excludeID string) (*SessionMeta, error) {
	row := cdb.db.QueryRowContext(ctx,
		`SELECT `+metaColumns+` FROM crawl_sessions WHERE host = ? AND id <> ? ORDER BY started_at DESC LIMIT 1`,
		strings.ToLower(host), excludeID)
	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no earlier crawl of %s", ErrSessionNotFound, host)
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Entries returns the sorted entries of one kind for a session.
func (cdb *CrawlDB) Entries(ctx context.Context, id string, kind EntryKind) ([]string, error) {
	return cdb.queryValues(ctx,
		`SELECT value FROM session_entries WHERE session_id = ? AND kind = ? ORDER BY value`,
		id, string(kind))
}

// Diff compares the entries of one kind between two sessions. Added holds
// values present only in newID, removed values present only in oldID.
func (cdb *CrawlDB) Diff(ctx context.Context, oldID, newID string, kind EntryKind) (added, removed []string, err error) {
	const q = `
	SELECT value FROM session_entries WHERE session_id = ? AND kind = ?
	EXCEPT
	SELECT value FROM session_entries WHERE session_id = ? AND kind = ?
	ORDER BY value`

	added, err = cdb.queryValues(ctx, q, newID, string(kind), oldID, string(kind))
	if err != nil {
		return nil, nil, err
	}
	removed, err = cdb.queryValues(ctx, q, oldID, string(kind), newID, string(kind))
	if err != nil {
		return nil, nil, err
	}
	return added, removed, nil
}

// DeleteSession removes a session and its entries.
func (cdb *CrawlDB) DeleteSession(ctx context.Context, id string) error {
	res, err := cdb.db.ExecContext(ctx, `DELETE FROM crawl_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (cdb *CrawlDB) queryValues(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(s scanner) (SessionMeta, error) {
	var (
		meta     SessionMeta
		started  string
		finished string
	)
	err := s.Scan(&meta.ID, &meta.Target, &meta.Host, &meta.Strategy, &started, &finished,
		&meta.Interrupted, &meta.Words, &meta.Emails, &meta.URLs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meta, err
		}
		return meta, fmt.Errorf("failed to scan session: %w", err)
	}
	meta.StartedAt = parseTimestamp(started)
	meta.FinishedAt = parseTimestamp(finished)
	return meta, nil
}

// hostOf returns the lower-cased host name of a target URL.
func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// storageLayout has fixed width so that text ordering is chronological.
const storageLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storageLayout)
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
