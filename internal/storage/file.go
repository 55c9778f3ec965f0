package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streamsched/internal/config"
	"streamsched/internal/model"
)

// FileStore keeps the snapshot as a JSON document at <dir>/schedule-storage.json.
type FileStore struct {
	path string
	loc  *time.Location
	mu   sync.RWMutex
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, loc *time.Location) *FileStore {
	if dir == "" {
		dir = "./var/streamsched"
	}
	return &FileStore{
		path: filepath.Join(dir, Namespace+".json"),
		loc:  loc,
	}
}

func (f *FileStore) Load(_ context.Context) (*model.State, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data, f.loc)
}

// Save writes the snapshot atomically with 0600 permissions.
func (f *FileStore) Save(ctx context.Context, s *model.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := config.WriteFileAtomic(f.path, data, "."+Namespace+"-*.tmp"); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Close() error { return nil }
