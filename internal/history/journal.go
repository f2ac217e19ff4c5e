package history

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/deepassist-go/internal/logger"
)

var errJournalClosed = errors.New("journal closed")

// Journal is a write-only sqlite transcript of appended messages.
// The database is opened lazily on first use. If opening it or creating the
// table fails, the journal disables itself and Save becomes a no-op.
type Journal struct {
	path string

	once    sync.Once
	db      *sql.DB
	initErr error
}

// NewJournal returns a journal backed by the sqlite file at path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) init() {
	db, err := sql.Open("sqlite", "file:"+j.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		j.initErr = err
		logger.L.Warn("sqlite open failed; transcript journal disabled", "path", j.path, "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`); err != nil {
		j.initErr = err
		_ = db.Close()
		logger.L.Warn("sqlite table creation failed; transcript journal disabled", "path", j.path, "error", err)
		return
	}
	j.db = db
	logger.L.Info("transcript journal initialized", "path", j.path)
}

// Save records msg under sessionID. Failures are logged, never returned:
// the journal must not affect a relay turn.
func (j *Journal) Save(sessionID string, msg Message) {
	j.once.Do(j.init)
	if j.initErr != nil {
		return
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := j.db.Exec(`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
		sessionID, string(msg.Role), msg.Content, created.UnixMilli()); err != nil {
		logger.L.Error("failed to store message in transcript journal", "session_id", sessionID, "error", err)
	}
}

// List returns all journaled messages of a session in insertion order.
func (j *Journal) List(sessionID string) ([]Message, error) {
	j.once.Do(j.init)
	if j.initErr != nil {
		return nil, fmt.Errorf("journal unavailable: %w", j.initErr)
	}
	rows, err := j.db.Query(`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m       Message
			role    string
			created int64
		)
		if err := rows.Scan(&role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.UnixMilli(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close releases the database handle. It waits for a first Save that is
// still opening the database; a journal never opened stays disabled.
func (j *Journal) Close() error {
	j.once.Do(func() { j.initErr = errJournalClosed })
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
