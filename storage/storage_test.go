package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "memory.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (s *Storage) count(userID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM memory_entries WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestAppendAndWindow(t *testing.T) {
	s := openTest(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.AppendEntry("u1", fmt.Sprintf("ts%d", i), fmt.Sprintf("m%d", i), 3))
	}
	require.NoError(t, s.AppendEntry("u2", "ts", "other", 3))

	n, err := s.count("u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.GetWindow("u1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].Message)
	assert.Equal(t, "m3", got[2].Message)

	got, err = s.GetWindow("u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, []string{got[0].Message, got[1].Message})
}

func TestWindowOrderedByInsertNotTimestamp(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.AppendEntry("u", "2030-01-01T00:00:00Z", "first", 5))
	require.NoError(t, s.AppendEntry("u", "2000-01-01T00:00:00Z", "second", 5))

	got, err := s.GetWindow("u", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
}

func TestWindowUnknownUser(t *testing.T) {
	s := openTest(t)
	got, err := s.GetWindow("nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
