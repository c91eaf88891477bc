// Package memory keeps a bounded, per-user rolling window of past messages
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/config"
	"github.com/gliderlab/relaybot/pkg/kv"
	"github.com/gliderlab/relaybot/storage"
)

// Entry is one remembered user message.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// NewEntry stamps msg with t. Newlines are flattened so one entry is one line.
func NewEntry(t time.Time, msg string) Entry {
	return Entry{
		Timestamp: t.Format(time.RFC3339Nano),
		Message:   flatten(msg),
	}
}

// String renders the entry the way it is stored and shown to the model.
func (e Entry) String() string {
	return e.Timestamp + ": " + e.Message
}

// Store is a bounded FIFO per user, ordered by append order.
// Failures are logged by the implementation and never returned: a lost memory
// read or write must not abort the turn.
type Store interface {
	// ReadWindow returns up to limit most recent entries, oldest first.
	ReadWindow(ctx context.Context, userID string, limit int) []Entry
	// Append adds e and keeps only the newest limit entries.
	Append(ctx context.Context, userID string, e Entry, limit int)
	Close() error
}

// Open builds the backend selected by cfg.Backend.
func Open(cfg config.MemoryConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("memory")

	switch cfg.Backend {
	case config.MemoryBackendFile, "":
		return NewFileStore(cfg.Dir, logger), nil
	case config.MemoryBackendBadger:
		db, err := kv.Open(kv.DefaultOptions(filepath.Join(cfg.Dir, "badger")), logger)
		if err != nil {
			return nil, err
		}
		return NewBadgerStore(db, logger), nil
	case config.MemoryBackendSQLite:
		db, err := storage.New(filepath.Join(cfg.Dir, "memory.db"), logger)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db, logger), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

// tail returns the last limit entries of list.
func tail(list []Entry, limit int) []Entry {
	if limit <= 0 {
		return nil
	}
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
