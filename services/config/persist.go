package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Persister stores the serialized configuration. Load returns fs.ErrNotExist
// when nothing has been saved yet.
type Persister interface {
	Load() ([]byte, error)
	Save(b []byte) error
}

// FileStore persists to a single file, replacing it atomically.
type FileStore struct {
	Path string
}

func (f FileStore) Load() ([]byte, error) {
	return os.ReadFile(f.Path)
}

func (f FileStore) Save(b []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// MemoryStore keeps the configuration in RAM. Firmware without a filesystem
// uses it; the contents are lost on reset.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
	// FailSave makes Save return an error.
	FailSave bool
}

func (m *MemoryStore) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryStore) Save(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave {
		return errors.New("memory store: save disabled")
	}
	m.data = append([]byte(nil), b...)
	return nil
}
