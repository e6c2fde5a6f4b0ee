package eventlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"stockwatch/internal/config"
	logx "stockwatch/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	item TEXT NOT NULL,
	at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_item ON events(item);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg config.EventLogConfig, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy, err := config.ParseDurationField("eventlog.busy_timeout", cfg.BusyTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if busy > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

// Save replaces the whole events table in one transaction, mirroring
// the overwrite-wholesale semantics of the file checkpoint.
func (s *sqliteStore) Save(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM events`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO events(item, at) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	// Deterministic row order keeps the table diffable across saves.
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, t := range snap[k] {
			if _, err := stmt.Exec(k, t.Format(timeFormat)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) Load() (Snapshot, error) {
	rows, err := s.db.Query(`SELECT item, at FROM events ORDER BY item, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := Snapshot{}
	for rows.Next() {
		var item, raw string
		if err := rows.Scan(&item, &raw); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("eventlog sqlite: item %s: %w", item, err)
		}
		snap[item] = append(snap[item], t)
	}
	return snap, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
