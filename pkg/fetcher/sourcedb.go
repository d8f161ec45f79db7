package fetcher

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SourceRow is a row from the galaxy_sources table.
type SourceRow struct {
	GalaxyName  string
	Description string
	SourceURL   string
	License     string
	ETag        *string
	LastFetch   *int64
	LastCheck   *int64
	LastStatus  *int
	LastError   *string
	UpdatedAt   int64
}

// SourceDB manages the galaxy_sources SQLite table.
type SourceDB struct {
	db *sql.DB
}

// OpenSourceDB opens (or creates) the SQLite database at path and ensures the
// galaxy_sources table exists.
func OpenSourceDB(path string) (*SourceDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open source db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS galaxy_sources (
		galaxy_name  TEXT PRIMARY KEY,
		description  TEXT NOT NULL,
		source_url   TEXT NOT NULL,
		license      TEXT NOT NULL DEFAULT '',
		etag         TEXT,
		last_fetch   INTEGER,
		last_check   INTEGER,
		last_status  INTEGER,
		last_error   TEXT,
		updated_at   INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create galaxy_sources table: %w", err)
	}

	return &SourceDB{db: db}, nil
}

// Close ferme la connexion SQLite.
func (s *SourceDB) Close() error {
	return s.db.Close()
}

// Seed inserts default rows for each source (INSERT OR IGNORE — existing rows
// are left untouched so that manual URL overrides survive restarts).
func (s *SourceDB) Seed(sources []Source) error {
	const q = `INSERT OR IGNORE INTO galaxy_sources
		(galaxy_name, description, source_url, license, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	now := time.Now().Unix()
	for _, src := range sources {
		if _, err := s.db.Exec(q, src.GalaxyName, src.Description, src.URL, src.License, now); err != nil {
			return fmt.Errorf("seed %s: %w", src.GalaxyName, err)
		}
	}
	return nil
}

// GetURL returns the current source URL for a galaxy.
func (s *SourceDB) GetURL(galaxyName string) (string, error) {
	var url string
	err := s.db.QueryRow(`SELECT source_url FROM galaxy_sources WHERE galaxy_name = ?`, galaxyName).Scan(&url)
	if err != nil {
		return "", fmt.Errorf("get url for %s: %w", galaxyName, err)
	}
	return url, nil
}

// SetURL overrides the source URL for a galaxy.
func (s *SourceDB) SetURL(galaxyName, url string) error {
	res, err := s.db.Exec(
		`UPDATE galaxy_sources SET source_url = ?, updated_at = ? WHERE galaxy_name = ?`,
		url, time.Now().Unix(), galaxyName,
	)
	if err != nil {
		return fmt.Errorf("set url for %s: %w", galaxyName, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("galaxy %s not found in galaxy_sources", galaxyName)
	}
	return nil
}

// GetETag returns the entity tag recorded for the last successful fetch,
// or "" when none was recorded.
func (s *SourceDB) GetETag(galaxyName string) (string, error) {
	var etag *string
	err := s.db.QueryRow(`SELECT etag FROM galaxy_sources WHERE galaxy_name = ?`, galaxyName).Scan(&etag)
	if err != nil {
		return "", fmt.Errorf("get etag for %s: %w", galaxyName, err)
	}
	if etag == nil {
		return "", nil
	}
	return *etag, nil
}

// RecordFetch persists a successful fetch with the response entity tag.
func (s *SourceDB) RecordFetch(galaxyName, etag string) error {
	now := time.Now().Unix()
	var etagPtr *string
	if etag != "" {
		etagPtr = &etag
	}
	_, err := s.db.Exec(
		`UPDATE galaxy_sources SET etag = ?, last_fetch = ?, updated_at = ? WHERE galaxy_name = ?`,
		etagPtr, now, now, galaxyName,
	)
	if err != nil {
		return fmt.Errorf("record fetch for %s: %w", galaxyName, err)
	}
	return nil
}

// UpdateCheck persists the result of an availability check.
func (s *SourceDB) UpdateCheck(galaxyName string, status int, checkErr string) error {
	now := time.Now().Unix()
	var errPtr *string
	if checkErr != "" {
		errPtr = &checkErr
	}
	_, err := s.db.Exec(
		`UPDATE galaxy_sources SET last_check = ?, last_status = ?, last_error = ? WHERE galaxy_name = ?`,
		now, status, errPtr, galaxyName,
	)
	if err != nil {
		return fmt.Errorf("update check for %s: %w", galaxyName, err)
	}
	return nil
}

// ListSources returns all rows from galaxy_sources ordered by galaxy name.
func (s *SourceDB) ListSources() ([]SourceRow, error) {
	rows, err := s.db.Query(`SELECT galaxy_name, description, source_url, license,
		etag, last_fetch, last_check, last_status, last_error, updated_at
		FROM galaxy_sources ORDER BY galaxy_name`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceRow
	for rows.Next() {
		var src SourceRow
		if err := rows.Scan(&src.GalaxyName, &src.Description, &src.SourceURL, &src.License,
			&src.ETag, &src.LastFetch, &src.LastCheck, &src.LastStatus, &src.LastError, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
