// Package store persists completed analysis runs to a local SQLite database.
// Only finished reports are archived; the in-run dependency cache is never
// persisted.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pagelens/internal/logging"

	_ "modernc.org/sqlite"
)

// Record is one archived run row.
type Record struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	FirstPartyKey  string    `json:"firstPartyKey,omitempty"`
	TotalRequests  int       `json:"totalRequests"`
	ClassifiedURLs int       `json:"classifiedUrls"`
	EntityCount    int       `json:"entityCount"`
	ReportJSON     []byte    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ReportStore archives run reports in SQLite.
type ReportStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewReportStore opens (creating if needed) the archive database at path.
// Use ":memory:" for an ephemeral store.
func NewReportStore(path string) (*ReportStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewReportStore")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &ReportStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("ReportStore opened at %s", path)
	return s, nil
}

func (s *ReportStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		url             TEXT NOT NULL,
		first_party_key TEXT,
		total_requests  INTEGER NOT NULL DEFAULT 0,
		classified_urls INTEGER NOT NULL DEFAULT 0,
		entity_count    INTEGER NOT NULL DEFAULT 0,
		report_json     TEXT NOT NULL,
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save archives a run record. A record's ID is unique per run; saving the
// same ID twice is a defect and surfaces as a constraint error.
func (s *ReportStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return fmt.Errorf("store: record requires an id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, url, first_party_key, total_requests, classified_urls, entity_count, report_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.FirstPartyKey, rec.TotalRequests, rec.ClassifiedURLs, rec.EntityCount,
		string(rec.ReportJSON), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store run %s: %w", rec.ID, err)
	}
	logging.Store("archived run %s (%s)", rec.ID, rec.URL)
	return nil
}

// List returns the most recent runs, newest first.
func (s *ReportStore) List(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, url, first_party_key, total_requests, classified_urls, entity_count, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.FirstPartyKey, &rec.TotalRequests,
			&rec.ClassifiedURLs, &rec.EntityCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get loads a single archived run with its full report payload.
func (s *ReportStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec Record
	var createdAt, reportJSON string
	err := s.db.QueryRow(
		`SELECT id, url, first_party_key, total_requests, classified_urls, entity_count, report_json, created_at
		 FROM runs WHERE id = ?`, id).
		Scan(&rec.ID, &rec.URL, &rec.FirstPartyKey, &rec.TotalRequests,
			&rec.ClassifiedURLs, &rec.EntityCount, &reportJSON, &createdAt)
	if err == sql.ErrNoRows {
		return Record{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load run %s: %w", id, err)
	}
	rec.ReportJSON = []byte(reportJSON)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// Close closes the underlying database.
func (s *ReportStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
