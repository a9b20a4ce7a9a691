package agentstate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Store loads and saves the agent state. Load returns defaults when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
	Close() error
}

// FileStore keeps the state as a single JSON object in a flat file.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file state store: empty path")
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Load(_ context.Context) (*State, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read state %s", f.path)
	}
	s := New()
	if err := json.Unmarshal(b, s); err != nil {
		return nil, errors.Wrapf(err, "decode state %s", f.path)
	}
	return s, nil
}

// Save replaces the file atomically through a temp file and rename.
func (f *FileStore) Save(_ context.Context, s *State) error {
	if s == nil {
		return errors.New("nil state")
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create state dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp state file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp state file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close temp state file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "replace state %s", f.path)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

// MemoryStore keeps a snapshot in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return New(), nil
	}
	return m.state.Snapshot(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *State) error {
	if s == nil {
		return errors.New("nil state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Snapshot()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
