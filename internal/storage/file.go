package storage

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"scoutbot/pkg/logx"
)

// fileStore keeps everything in memory and rewrites one JSON snapshot on
// every change. The data is tiny (tens of keys per target), so a full
// rewrite is fine.
type fileStore struct {
	log  logx.Logger
	path string

	mu    sync.Mutex
	state fileState
}

type fileState struct {
	Seen       map[string][]string `json:"seen"`
	Recipients []int64             `json:"recipients"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{log: log, path: path, state: fileState{Seen: map[string][]string{}}}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &st.state); err != nil {
			// A corrupt snapshot only costs us history; start fresh.
			log.Warn("storage snapshot unreadable; starting empty", logx.String("path", path), logx.Err(err))
			st.state = fileState{Seen: map[string][]string{}}
		}
		if st.state.Seen == nil {
			st.state.Seen = map[string][]string{}
		}
	}
	return st, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadSeen(ctx context.Context, target string) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Seen[target]), nil
}

func (s *fileStore) SaveSeen(ctx context.Context, target string, keys []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fileState{Seen: maps.Clone(s.state.Seen), Recipients: s.state.Recipients}
	next.Seen[target] = slices.Clone(keys)
	return s.commitLocked(next)
}

func (s *fileStore) LoadRecipients(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Recipients), nil
}

func (s *fileStore) AddRecipients(ctx context.Context, ids []int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	recipients := slices.Clone(s.state.Recipients)
	for _, id := range ids {
		if !slices.Contains(recipients, id) {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == len(s.state.Recipients) {
		return nil
	}
	slices.Sort(recipients)
	return s.commitLocked(fileState{Seen: s.state.Seen, Recipients: recipients})
}

// commitLocked writes next and only then makes it the in-memory state, so
// a failed write leaves memory matching the file on disk.
func (s *fileStore) commitLocked(next fileState) error {
	if err := s.flushLocked(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *fileStore) flushLocked(state fileState) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
