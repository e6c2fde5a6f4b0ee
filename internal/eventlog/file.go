package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockwatch/internal/config"
	logx "stockwatch/pkg/logx"
)

// timeFormat keeps full precision so a checkpoint/load round trip is
// lossless.
const timeFormat = time.RFC3339Nano

// fileStore persists snapshots as a single JSON object mapping item key
// to an array of timestamp strings. Each Save writes a temp file and
// renames it over the checkpoint, so readers never observe a torn file.
type fileStore struct {
	path string
	log  logx.Logger
}

func openFile(cfg config.EventLogConfig, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{path: cfg.Path, log: log}, nil
}

func (s *fileStore) Save(snap Snapshot) error {
	enc := make(map[string][]string, len(snap))
	for k, ts := range snap {
		ss := make([]string, len(ts))
		for i, t := range ts {
			ss[i] = t.Format(timeFormat)
		}
		enc[k] = ss
	}

	b, err := json.Marshal(enc)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *fileStore) Load() (Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Debug("no checkpoint yet", logx.String("path", s.path))
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}

	var enc map[string][]string
	if err := json.Unmarshal(b, &enc); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", s.path, err)
	}

	snap := make(Snapshot, len(enc))
	for k, ss := range enc {
		ts := make([]time.Time, 0, len(ss))
		for _, raw := range ss {
			t, err := time.Parse(timeFormat, raw)
			if err != nil {
				return nil, fmt.Errorf("checkpoint %s: item %s: %w", s.path, k, err)
			}
			ts = append(ts, t)
		}
		snap[k] = ts
	}
	return snap, nil
}

func (s *fileStore) Close() error { return nil }
