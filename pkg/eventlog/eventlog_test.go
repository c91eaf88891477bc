package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fixed = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l := New(t.TempDir(), zap.NewNop())
	l.now = func() time.Time { return fixed }
	return l
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestPath(t *testing.T) {
	l := New("/var/log/bot", nil)
	assert.Equal(t, filepath.Join("/var/log/bot", "2024-05-01", "42_7.log"),
		l.Path(fixed, Origin{UserID: "7", GuildID: "42"}))
	assert.Equal(t, filepath.Join("/var/log/bot", "2024-05-01", "DM_7.log"),
		l.Path(fixed, Origin{UserID: "7"}))
	assert.Equal(t, filepath.Join("/var/log/bot", "2024-05-01", "DM____x.log"),
		l.Path(fixed, Origin{UserID: "../x"}))
}

func TestReceivedAndSent(t *testing.T) {
	l := newTestLog(t)
	o := Origin{UserID: "7", UserName: "Ana", GuildID: "42", GuildName: "Gophers"}

	l.Received(o, "list files\nplease")
	l.Sent(o, 0, 2, strings.Repeat("x", 300))
	l.Sent(o, 1, 2, "tail")

	lines := readLines(t, l.Path(fixed, o))
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-05-01T10:30:00Z - User: Ana (7) - Guild: Gophers (42) - Input: list files please", lines[0])
	assert.Equal(t, "2024-05-01T10:30:00Z - Sent Chunk 1/2 to Ana: "+strings.Repeat("x", PreviewLen)+"...", lines[1])
	assert.Equal(t, "2024-05-01T10:30:00Z - Sent Chunk 2/2 to Ana: tail...", lines[2])
}

func TestDMScope(t *testing.T) {
	l := newTestLog(t)
	o := Origin{UserID: "7", UserName: "Ana"}
	l.Received(o, "hi")

	lines := readLines(t, l.Path(fixed, o))
	assert.Contains(t, lines[0], "Guild: DM (DM)")
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() {
		l.Received(Origin{}, "x")
		l.Sent(Origin{}, 0, 1, "x")
	})
}

func TestWriteFailureIsLogged(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	core, logs := observer.New(zap.WarnLevel)
	l := New(blocker, zap.New(core))
	l.now = func() time.Time { return fixed }

	l.Received(Origin{UserID: "7"}, "hi")
	assert.Equal(t, 1, logs.FilterMessage("event log dir failed").Len())
}
