package memory

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/pkg/kv"
)

const badgerKeyPrefix = "memory:"

// BadgerStore keeps each user's window as one JSON array value.
type BadgerStore struct {
	db     *kv.KV
	logger *zap.Logger
}

func NewBadgerStore(db *kv.KV, logger *zap.Logger) *BadgerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgerStore{db: db, logger: logger}
}

func (s *BadgerStore) ReadWindow(_ context.Context, userID string, limit int) []Entry {
	raw, err := s.db.Get(badgerKeyPrefix + userID)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("memory read failed", zap.String("user", userID), zap.Error(err))
		}
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("memory decode failed", zap.String("user", userID), zap.Error(err))
		return nil
	}
	return tail(entries, limit)
}

func (s *BadgerStore) Append(_ context.Context, userID string, e Entry, limit int) {
	if limit <= 0 {
		return
	}
	e.Message = flatten(e.Message)
	err := s.db.Update(badgerKeyPrefix+userID, func(old []byte) ([]byte, error) {
		var entries []Entry
		if len(old) > 0 {
			if err := json.Unmarshal(old, &entries); err != nil {
				s.logger.Warn("memory decode failed, resetting window", zap.String("user", userID), zap.Error(err))
				entries = nil
			}
		}
		return json.Marshal(tail(append(entries, e), limit))
	})
	if err != nil {
		s.logger.Warn("memory write failed", zap.String("user", userID), zap.Error(err))
	}
}

func (s *BadgerStore) Close() error { return s.db.Close() }
