package cache

import (
	"errors"
	"time"

	"costdash/internal/core"
	"costdash/internal/ingest"

	"github.com/google/uuid"
)

// ErrDatasetNotFound is returned for unknown or expired dataset IDs.
var ErrDatasetNotFound = errors.New("dataset not found")

// Session is one ingested dataset held for the dashboard.
type Session struct {
	ID        string
	File      string
	Source    string
	Dataset   ingest.Dataset
	Defaults  core.FilterParams
	CreatedAt time.Time
}

// DatasetStore keeps uploaded datasets in memory only, bounded by size and TTL.
type DatasetStore struct {
	lru *LRUCache[Session]
}

func NewDatasetStore(maxSize int, ttl time.Duration) *DatasetStore {
	return &DatasetStore{lru: NewLRUCache[Session](maxSize, ttl)}
}

// Put stores ds under a fresh ID.
func (s *DatasetStore) Put(file, source string, ds ingest.Dataset) Session {
	sess := Session{
		ID:        uuid.NewString(),
		File:      file,
		Source:    source,
		Dataset:   ds,
		Defaults:  core.DefaultFilter(ds.Records),
		CreatedAt: s.lru.now().UTC(),
	}
	s.lru.Set(sess.ID, sess)
	return sess
}

func (s *DatasetStore) Get(id string) (Session, error) {
	sess, ok := s.lru.Get(id)
	if !ok {
		return Session{}, ErrDatasetNotFound
	}
	return sess, nil
}

// Delete forgets a dataset. It reports whether the ID was held.
func (s *DatasetStore) Delete(id string) bool {
	if _, ok := s.lru.Get(id); !ok {
		return false
	}
	s.lru.Delete(id)
	return true
}

func (s *DatasetStore) Size() int { return s.lru.Size() }

// Evicted counts sessions dropped to make room for newer uploads.
func (s *DatasetStore) Evicted() int { return s.lru.Evicted() }

// CleanExpired lets a Manager sweep the store.
func (s *DatasetStore) CleanExpired() int { return s.lru.CleanExpired() }
