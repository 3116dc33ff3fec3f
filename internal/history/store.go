// Package history keeps per-session conversation history for the lifetime of
// the process, with write-through SQLite persistence. The database is opened
// lazily and created on first use. If opening the DB or executing queries
// fails, the store degrades to memory-only operation.
package history

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/bankteller/teller-go/internal/logger"
)

type sessionEntry struct {
	messages []Message
	lastUsed time.Time
}

// Store maps session ids to ordered, append-only conversations.
//
// The mutex guards map integrity only. Two concurrent requests against the
// same session may both read the same history and both append; last-write
// ordering between them is not defined.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	max      int

	dbPath  string
	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// NewStore creates a session history store. dbPath of "" disables
// persistence; maxSessions of 0 disables eviction.
func NewStore(dbPath string, maxSessions int) *Store {
	return &Store{
		sessions: make(map[string]*sessionEntry),
		max:      maxSessions,
		dbPath:   dbPath,
	}
}

// initDB lazily opens the SQLite database and creates the messages table if
// it doesn't exist.
func (s *Store) initDB() {
	if s.dbPath == "" {
		s.initErr = sql.ErrConnDone
		return
	}
	var err error
	s.db, err = sql.Open("sqlite", "file:"+s.dbPath+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; history is memory-only", "error", err)
		return
	}
	if _, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT,
        role TEXT,
        content TEXT,
        created_at DATETIME
    );`); err != nil {
		s.initErr = err
		logger.L.Warn("sqlite table creation failed; history is memory-only", "error", err)
		return
	}
	logger.L.Info("sqlite history DB initialized", "path", s.dbPath)
}

// Append records a message at the end of the session's conversation. The
// message is persisted when the database is available and always kept in
// memory.
func (s *Store) Append(sessionID string, msg Message) {
	s.dbOnce.Do(s.initDB)

	msg.SessionID = sessionID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if s.initErr == nil && s.db != nil {
		if _, err := s.db.Exec(`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
			msg.SessionID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
			logger.L.Error("failed to store message in sqlite; keeping in-memory copy only", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{}
		s.sessions[sessionID] = entry
	}
	entry.messages = append(entry.messages, msg)
	entry.lastUsed = time.Now()
	if !ok {
		s.evictLocked()
	}
}

// Get returns the session's messages in chronological order, or an empty
// slice for an unseen session. Sessions absent from memory are warm-started
// from the database when one is available.
func (s *Store) Get(sessionID string) []Message {
	s.dbOnce.Do(s.initDB)

	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if ok {
		entry.lastUsed = time.Now()
		out := make([]Message, len(entry.messages))
		copy(out, entry.messages)
		s.mu.Unlock()
		return out
	}
	s.mu.Unlock()

	loaded := s.loadFromDB(sessionID)
	if len(loaded) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = &sessionEntry{messages: loaded, lastUsed: time.Now()}
		s.evictLocked()
	}
	out := make([]Message, len(loaded))
	copy(out, loaded)
	return out
}

func (s *Store) loadFromDB(sessionID string) []Message {
	if s.initErr != nil || s.db == nil {
		return nil
	}
	rows, err := s.db.Query(`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		logger.L.Warn("sqlite history query failed", "error", err)
		return nil
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// evictLocked drops the least recently used session when the cap is
// exceeded. Persisted rows are kept; only the in-memory copy goes.
func (s *Store) evictLocked() {
	if s.max <= 0 || len(s.sessions) <= s.max {
		return
	}
	oldestID := ""
	var oldest time.Time
	for id, entry := range s.sessions {
		if oldestID == "" || entry.lastUsed.Before(oldest) {
			oldestID = id
			oldest = entry.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		logger.L.Debug("evicted session from memory", "sessionId", oldestID)
	}
}
