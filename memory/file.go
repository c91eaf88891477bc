package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const memoryFileName = "memory.ini"

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FileStore keeps one plain-text file per user, one entry per line, newest last.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}
}

// Path returns the memory file for userID.
func (s *FileStore) Path(userID string) string {
	id := unsafeIDChars.ReplaceAllString(userID, "_")
	if id == "" {
		id = "_"
	}
	return filepath.Join(s.dir, id, memoryFileName)
}

func (s *FileStore) ReadWindow(_ context.Context, userID string, limit int) []Entry {
	entries, err := s.load(userID)
	if err != nil {
		s.logger.Warn("memory read failed", zap.String("user", userID), zap.Error(err))
		return nil
	}
	return tail(entries, limit)
}

func (s *FileStore) Append(_ context.Context, userID string, e Entry, limit int) {
	if limit <= 0 {
		return
	}
	entries, err := s.load(userID)
	if err != nil {
		// rewrite from scratch rather than lose the new entry too
		s.logger.Warn("memory read failed before append", zap.String("user", userID), zap.Error(err))
		entries = nil
	}
	entries = tail(append(entries, Entry{Timestamp: e.Timestamp, Message: flatten(e.Message)}), limit)

	if err := s.save(userID, entries); err != nil {
		s.logger.Warn("memory write failed", zap.String("user", userID), zap.Error(err))
	}
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load(userID string) ([]Entry, error) {
	f, err := os.Open(s.Path(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, parseLine(line))
	}
	return out, sc.Err()
}

func (s *FileStore) save(userID string, entries []Entry) error {
	path := s.Path(userID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), memoryFileName+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		w.WriteString(e.String())
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func parseLine(line string) Entry {
	if ts, msg, ok := strings.Cut(line, ": "); ok && ts != "" && !strings.Contains(ts, " ") {
		return Entry{Timestamp: ts, Message: msg}
	}
	return Entry{Message: line}
}
