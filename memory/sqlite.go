package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/storage"
)

// SQLiteStore keeps windows as rows ordered by insertion id.
type SQLiteStore struct {
	db     *storage.Storage
	logger *zap.Logger
}

func NewSQLiteStore(db *storage.Storage, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) ReadWindow(_ context.Context, userID string, limit int) []Entry {
	if limit <= 0 {
		return nil
	}
	rows, err := s.db.GetWindow(userID, limit)
	if err != nil {
		s.logger.Warn("memory read failed", zap.String("user", userID), zap.Error(err))
		return nil
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{Timestamp: r.Timestamp, Message: r.Message})
	}
	return out
}

func (s *SQLiteStore) Append(_ context.Context, userID string, e Entry, limit int) {
	if limit <= 0 {
		return
	}
	if err := s.db.AppendEntry(userID, e.Timestamp, flatten(e.Message), limit); err != nil {
		s.logger.Warn("memory write failed", zap.String("user", userID), zap.Error(err))
	}
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
