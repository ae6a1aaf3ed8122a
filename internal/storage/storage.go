// Package storage persists what scoutbot must remember across restarts:
// the recently seen item keys of every watch target and the chat ids
// discovered as recipients.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"scoutbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot written atomically (temp file + rename)
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the watcher and the notifier.
type Store interface {
	// LoadSeen returns the stored keys of target, most recent first.
	LoadSeen(ctx context.Context, target string) ([]string, error)
	// SaveSeen replaces the stored keys of target.
	SaveSeen(ctx context.Context, target string, keys []string) error
	LoadRecipients(ctx context.Context) ([]int64, error)
	// AddRecipients stores ids; already known ids are ignored.
	AddRecipients(ctx context.Context, ids []int64) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
