package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamsched/internal/config"
	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// ErrNotFound is returned by Load when no snapshot has been stored yet.
var ErrNotFound = errors.New("storage: no snapshot stored")

// Store persists a single schedule snapshot under Namespace.
type Store interface {
	Load(ctx context.Context) (*model.State, error)
	Save(ctx context.Context, s *model.State) error
	// Path is the file backing the store, for watching and logging.
	Path() string
	Close() error
}

// Open returns the store selected by cfg. loc is used to read dates that were
// stored without an offset.
func Open(cfg config.StorageConfig, loc *time.Location) (Store, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		return NewFileStore(cfg.Path, loc), nil
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.Path, loc)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// LoadOrDefault returns the stored snapshot, or nil with no error when the
// store is empty.
func LoadOrDefault(ctx context.Context, st Store) (*model.State, error) {
	s, err := st.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// Persister hands every published snapshot to a Store. Save failures are
// logged and kept for Err; they never affect the container.
type Persister struct {
	store   Store
	timeout time.Duration

	mu      sync.Mutex
	lastErr error
}

// NewPersister wraps st. Each save is bounded by timeout; zero means 5s.
func NewPersister(st Store, timeout time.Duration) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{store: st, timeout: timeout}
}

func (p *Persister) Persist(s *model.State) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.store.Save(ctx, s)
	if err != nil {
		appLog.Error("snapshot save failed", err, "path", p.store.Path())
	} else {
		appLog.Debug("snapshot saved", "path", p.store.Path(), "total_streams", s.TotalStreams)
	}

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// Err returns the result of the most recent save.
func (p *Persister) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
