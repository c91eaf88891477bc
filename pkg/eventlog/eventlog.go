// Package eventlog appends human-readable turn events to daily per-conversation files
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DMScope replaces the guild ID for direct messages.
	DMScope = "DM"
	// PreviewLen is how much of each sent chunk is recorded.
	PreviewLen = 200

	dayLayout = "2006-01-02"
)

// Origin identifies who a turn belongs to.
type Origin struct {
	UserID    string
	UserName  string
	GuildID   string // empty for DMs
	GuildName string
}

func (o Origin) scope() string {
	if o.GuildID == "" {
		return DMScope
	}
	return o.GuildID
}

// Log writes to <dir>/<YYYY-MM-DD>/<guildID|DM>_<userID>.log.
// A nil *Log discards everything. Write failures are logged and never returned.
type Log struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// New creates an event log rooted at dir.
func New(dir string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{dir: dir, logger: logger.Named("eventlog"), now: time.Now}
}

// Path returns the file events for o at t are written to.
func (l *Log) Path(t time.Time, o Origin) string {
	name := sanitize(o.scope()) + "_" + sanitize(o.UserID) + ".log"
	return filepath.Join(l.dir, t.Format(dayLayout), name)
}

// Received records an inbound message.
func (l *Log) Received(o Origin, message string) {
	if l == nil {
		return
	}
	guild := o.GuildName
	if o.GuildID == "" {
		guild = DMScope
	}
	l.append(o, fmt.Sprintf("User: %s (%s) - Guild: %s (%s) - Input: %s",
		o.UserName, o.UserID, guild, o.scope(), oneLine(message)))
}

// Sent records a preview of chunk index (0-based) of total delivered to the user.
func (l *Log) Sent(o Origin, index, total int, chunk string) {
	if l == nil {
		return
	}
	preview := []rune(oneLine(chunk))
	if len(preview) > PreviewLen {
		preview = preview[:PreviewLen]
	}
	l.append(o, fmt.Sprintf("Sent Chunk %d/%d to %s: %s...", index+1, total, o.UserName, string(preview)))
}

func (l *Log) append(o Origin, text string) {
	now := l.now()
	path := l.Path(now, o)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.logger.Warn("event log dir failed", zap.String("path", path), zap.Error(err))
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Warn("event log open failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.WriteString(now.Format(time.RFC3339Nano) + " - " + text + "\n"); err != nil {
		l.logger.Warn("event log write failed", zap.String("path", path), zap.Error(err))
	}
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.', 0:
			return '_'
		}
		return r
	}, s)
}
