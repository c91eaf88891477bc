// Package kv provides a small persistent key-value store using BadgerDB
package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("kv: key not found")

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("kv: closed")

type KV struct {
	db       *badger.DB
	closed   bool
	closedMu sync.RWMutex
}

// Options for KV store
type Options struct {
	Dir           string // Data directory
	SyncWrites    bool   // Sync writes to disk
	Compression   bool   // Enable compression
	MemoryMode    bool   // In-memory only (no persistence)
	ValueLogMaxMB int64  // Max value log size in MB
}

// DefaultOptions returns default options
func DefaultOptions(dir string) Options {
	return Options{
		Dir:           dir,
		SyncWrites:    true, // memory writes are small and infrequent
		Compression:   true,
		ValueLogMaxMB: 64,
	}
}

// Open opens a KV store. A nil logger silences badger.
func Open(opt Options, logger *zap.Logger) (*KV, error) {
	if !opt.MemoryMode && opt.Dir == "" {
		opt.Dir = filepath.Join(os.TempDir(), "relaybot-kv")
	}

	opts := badger.DefaultOptions(opt.Dir)
	opts.SyncWrites = opt.SyncWrites
	if opt.Compression && !opt.MemoryMode {
		opts.Compression = options.ZSTD
	}
	if !opt.MemoryMode && opt.ValueLogMaxMB > 0 {
		opts.ValueLogFileSize = opt.ValueLogMaxMB * 1024 * 1024
	}
	if opt.MemoryMode {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if logger != nil {
		opts.Logger = badgerLogger{logger.Named("badger").Sugar()}
	} else {
		opts.Logger = nil
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger failed: %w", err)
	}
	if logger != nil {
		logger.Info("kv opened", zap.String("dir", opt.Dir), zap.Bool("memory", opt.MemoryMode))
	}
	return &KV{db: db}, nil
}

// Close closes the KV store
func (k *KV) Close() error {
	k.closedMu.Lock()
	defer k.closedMu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	return k.db.Close()
}

// Get returns the raw value of key, or ErrNotFound
func (k *KV) Get(key string) ([]byte, error) {
	k.closedMu.RLock()
	defer k.closedMu.RUnlock()
	if k.closed {
		return nil, ErrClosed
	}

	var out []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

// Update reads key (nil when absent), passes it to fn and stores the result
// in the same transaction. Conflicting concurrent updates are retried once.
func (k *KV) Update(key string, fn func(old []byte) ([]byte, error)) error {
	k.closedMu.RLock()
	defer k.closedMu.RUnlock()
	if k.closed {
		return ErrClosed
	}

	apply := func(txn *badger.Txn) error {
		var old []byte
		item, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			if old, err = item.ValueCopy(nil); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		next, err := fn(old)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), next)
	}

	err := k.db.Update(apply)
	if errors.Is(err, badger.ErrConflict) {
		err = k.db.Update(apply)
	}
	return err
}

// badgerLogger routes badger's internal logging through zap
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.s.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }
