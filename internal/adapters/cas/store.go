// Package cas implements the install receipt store.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ReceiptStore = (*Store)(nil)

const (
	dirPerm  = 0o750
	filePerm = 0o644
)

// Store implements ports.ReceiptStore with one JSON file per package.
type Store struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*domain.InstallReceipt
}

// NewStore creates a receipt store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{
		dir:   filepath.Clean(dir),
		cache: make(map[string]*domain.InstallReceipt),
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, url.PathEscape(name)+".json")
}

// Get retrieves the receipt for a package name.
// Returns nil, nil if the package has no receipt.
func (s *Store) Get(name string) (*domain.InstallReceipt, error) {
	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return clone(cached), nil
	}

	path := s.path(name)
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the receipt dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreReadFailed, err.Error()), "path", path)
	}

	var receipt domain.InstallReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreUnmarshalFailed, err.Error()), "path", path)
	}

	s.mu.Lock()
	s.cache[name] = &receipt
	s.mu.Unlock()

	return clone(&receipt), nil
}

// Put stores the receipt, replacing any previous one for the same package.
func (s *Store) Put(receipt domain.InstallReceipt) error {
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return zerr.Wrap(domain.ErrStoreMarshalFailed, err.Error())
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrStoreCreateFailed, err.Error()), "path", s.dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(receipt.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), filePerm); err != nil { //nolint:gosec // receipts are not secret
		return zerr.With(zerr.Wrap(domain.ErrStoreWriteFailed, err.Error()), "path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(domain.ErrStoreWriteFailed, err.Error()), "path", path)
	}

	s.cache[receipt.Name] = clone(&receipt)
	return nil
}

func clone(r *domain.InstallReceipt) *domain.InstallReceipt {
	out := *r
	out.Dependencies = append([]domain.ReceiptDependency(nil), r.Dependencies...)
	return &out
}
