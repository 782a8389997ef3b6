package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/gorm"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const (
	catalogFile = "catalog.sqlite3"
	notesFile   = "notes.sqlite3"
)

// openStore is a cached namespace store. The first caller for a path opens
// it while later callers wait on ready; db, store and err are written once,
// before ready is closed.
type openStore struct {
	ready chan struct{}
	db    *gorm.DB
	store any
	err   error
}

func (s *openStore) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Registry caches opened namespace stores by file path and implements
// domain.CatalogOpener.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*openStore
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("component", "catalog_registry"),
		stores: make(map[string]*openStore),
	}
}

// OpenTenant opens <dir>/catalog.sqlite3.
func (r *Registry) OpenTenant(ctx context.Context, dir string, create bool) (domain.TenantCatalog, error) {
	s, err := r.open(ctx, filepath.Join(dir, catalogFile), create, func(db *gorm.DB) (any, error) {
		return NewTenantCatalog(db)
	})
	if err != nil {
		return nil, err
	}
	return s.(*TenantCatalog), nil
}

// OpenNotes opens <dir>/notes.sqlite3.
func (r *Registry) OpenNotes(ctx context.Context, dir string, create bool) (domain.DeskNoteRepository, error) {
	s, err := r.open(ctx, filepath.Join(dir, notesFile), create, func(db *gorm.DB) (any, error) {
		return NewDeskNoteRepository(db)
	})
	if err != nil {
		return nil, err
	}
	return s.(*DeskNoteRepository), nil
}

func (r *Registry) open(ctx context.Context, path string, create bool, build func(*gorm.DB) (any, error)) (any, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				r.forget(path)
				return nil, domain.NotFoundf("catalog %s does not exist", filepath.Base(filepath.Dir(path)))
			}
			return nil, storageErr("stat catalog", err)
		}
	}

	r.mu.Lock()
	s, ok := r.stores[path]
	if !ok {
		s = &openStore{ready: make(chan struct{})}
		r.stores[path] = s
	}
	r.mu.Unlock()
	if !ok {
		r.load(path, s, build)
	}

	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.store, nil
}

// load opens the database for s without holding r.mu. A failed entry is
// removed so the next caller retries.
func (r *Registry) load(path string, s *openStore, build func(*gorm.DB) (any, error)) {
	defer close(s.ready)

	db, store, err := openStoreAt(path, build)
	r.mu.Lock()
	current := r.stores[path] == s
	if err != nil || !current {
		if current {
			delete(r.stores, path)
		}
		r.mu.Unlock()
		if err == nil {
			// Close ran while the store was opening.
			err = storageErr("open catalog", errRegistryClosed)
			if cerr := closeDB(db); cerr != nil {
				r.logger.Warn("failed to close orphaned catalog", "error", cerr)
			}
		}
		s.err = err
		return
	}
	s.db, s.store = db, store
	r.mu.Unlock()
	r.logger.Debug("opened catalog", "file", filepath.Base(path))
}

var errRegistryClosed = errors.New("catalog registry closed")

func openStoreAt(path string, build func(*gorm.DB) (any, error)) (*gorm.DB, any, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, storageErr("create namespace directory", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, nil, storageErr("open catalog", err)
	}
	store, err := build(db)
	if err != nil {
		closeDB(db)
		return nil, nil, err
	}
	return db, store, nil
}

// forget drops a cached store whose file disappeared out of band. Stores
// still being opened are left alone.
func (r *Registry) forget(path string) {
	r.mu.Lock()
	s, ok := r.stores[path]
	if ok && s.isReady() {
		delete(r.stores, path)
	} else {
		ok = false
	}
	r.mu.Unlock()
	if ok {
		if err := closeDB(s.db); err != nil {
			r.logger.Warn("failed to close stale catalog", "error", err)
		}
	}
}

// Close closes every cached store. Stores still being opened are dropped and
// closed by their opener.
func (r *Registry) Close() error {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*openStore)
	r.mu.Unlock()

	var errs []error
	for path, s := range stores {
		if !s.isReady() || s.db == nil {
			continue
		}
		if err := closeDB(s.db); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
