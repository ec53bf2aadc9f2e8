package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"costdash/internal/ingest"
	ports "costdash/internal/sheets"
)

// Seed file names looked up by NewFromFiles, in order of preference.
var seedFiles = []string{"costs.xlsx", "costs.csv"}

// Store serves a dataset held in memory.
type Store struct {
	mu     sync.RWMutex
	source string
	ds     ingest.Dataset
}

var (
	_ ports.CostReader = (*Store)(nil)
	_ ports.Describer  = (*Store)(nil)
)

func New(ds ingest.Dataset) *Store {
	return &Store{source: "memory", ds: ds}
}

// NewFromFiles seeds the store from costs.xlsx or costs.csv under base.
// A missing seed file yields an empty store; a malformed one is an error.
func NewFromFiles(base string) (*Store, error) {
	for _, name := range seedFiles {
		path := filepath.Join(base, name)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open seed %s: %w", path, err)
		}
		ds, err := ingest.Read(name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load seed %s: %w", path, err)
		}
		slog.Info("Loaded seed dataset", "path", path, "records", len(ds.Records))
		return &Store{source: "file:" + name, ds: ds}, nil
	}
	slog.Info("No seed dataset found", "dir", base)
	return New(ingest.Dataset{}), nil
}

// ReadCosts returns a copy of the held dataset.
func (s *Store) ReadCosts(_ context.Context) (ingest.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.ds
	out.Records = slices.Clone(s.ds.Records)
	return out, nil
}

// Replace swaps the held dataset.
func (s *Store) Replace(ds ingest.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}

func (s *Store) Describe() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}
