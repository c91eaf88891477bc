// Storage module - SQLite persistence for per-user memory windows

package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Storage struct {
	db     *sql.DB
	logger *zap.Logger

	// Prepared statements for the two hot paths
	stmtAddEntry  *sql.Stmt
	stmtTrim      *sql.Stmt
	stmtGetWindow *sql.Stmt
}

// Entry is one stored memory line
type Entry struct {
	ID        int64
	UserID    string
	Timestamp string
	Message   string
}

// New opens (or creates) the database at dbPath
func New(dbPath string, logger *zap.Logger) (*Storage, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between turns
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous: %w", err)
	}

	s := &Storage{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.initPreparedStmts(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("storage opened", zap.String("db", dbPath))
	return s, nil
}

func (s *Storage) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS memory_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_entries_user ON memory_entries(user_id, id);
	`)
	return err
}

func (s *Storage) initPreparedStmts() error {
	var err error
	if s.stmtAddEntry, err = s.db.Prepare("INSERT INTO memory_entries (user_id, timestamp, message) VALUES (?, ?, ?)"); err != nil {
		return fmt.Errorf("AddEntry: %w", err)
	}
	// keep only the newest N rows for the user, by insertion id
	if s.stmtTrim, err = s.db.Prepare(`DELETE FROM memory_entries WHERE user_id = ? AND id NOT IN (
		SELECT id FROM memory_entries WHERE user_id = ? ORDER BY id DESC LIMIT ?)`); err != nil {
		return fmt.Errorf("Trim: %w", err)
	}
	if s.stmtGetWindow, err = s.db.Prepare(`SELECT id, user_id, timestamp, message FROM (
		SELECT id, user_id, timestamp, message FROM memory_entries WHERE user_id = ? ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`); err != nil {
		return fmt.Errorf("GetWindow: %w", err)
	}
	return nil
}

// AppendEntry inserts one entry and trims the user's rows to the newest limit, atomically
func (s *Storage) AppendEntry(userID, timestamp, message string, limit int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Stmt(s.stmtAddEntry).Exec(userID, timestamp, message); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if _, err := tx.Stmt(s.stmtTrim).Exec(userID, userID, limit); err != nil {
		return fmt.Errorf("trim entries: %w", err)
	}
	return tx.Commit()
}

// GetWindow returns up to limit newest entries for userID, oldest first
func (s *Storage) GetWindow(userID string, limit int) ([]Entry, error) {
	rows, err := s.stmtGetWindow.Query(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.Message); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Storage) Close() error {
	for _, st := range []*sql.Stmt{s.stmtAddEntry, s.stmtTrim, s.stmtGetWindow} {
		if st != nil {
			st.Close()
		}
	}
	return s.db.Close()
}
