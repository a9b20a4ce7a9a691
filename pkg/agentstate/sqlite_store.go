package agentstate

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// SQLiteStore persists the state as one JSON payload row per agent name.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	agent  string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// ErrStoreClosed is returned by Load and Save after Close.
var ErrStoreClosed = errors.New("sqlite state store closed")

func NewSQLiteStore(dsn string, agent string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite state store: empty dsn")
	}
	if agent == "" {
		agent = "default"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite state store: open")
	}
	s := &SQLiteStore{db: db, agent: agent}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteDSNForFile returns a DSN suitable for a state database at path.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite state store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteStore) migrate() error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "sqlite state store: goose dialect")
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return errors.Wrap(err, "sqlite state store: migrate")
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload_json FROM agent_state WHERE agent = ?`, s.agent).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlite state store: load")
	}

	st := New()
	if err := json.Unmarshal([]byte(payload), st); err != nil {
		return nil, errors.Wrap(err, "sqlite state store: decode")
	}
	return st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, st *State) error {
	if st == nil {
		return errors.New("nil state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "sqlite state store: encode")
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO agent_state (agent, payload_json, step, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(agent) DO UPDATE SET payload_json = excluded.payload_json, step = excluded.step, updated_at_ms = excluded.updated_at_ms`,
		s.agent,
		string(payload),
		st.Step,
		time.Now().UnixMilli(),
	)
	return errors.Wrap(err, "sqlite state store: save")
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
