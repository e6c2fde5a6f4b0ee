package eventlog

import (
	"errors"
	"strings"

	"stockwatch/internal/config"
	logx "stockwatch/pkg/logx"
)

// Store persists event-log snapshots. Save overwrites the previous
// checkpoint wholesale; Load returns the last checkpoint, or an empty
// snapshot when none exists yet.
type Store interface {
	Save(s Snapshot) error
	Load() (Snapshot, error)
	Close() error
}

// Open initializes the configured store.
//
// Driver values:
//   - "file" (or empty): JSON checkpoint file, replaced atomically
//   - "sqlite": SQLite database file
func Open(cfg config.EventLogConfig, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown eventlog driver: " + driver)
	}
}
