// Package index tracks uploads in a BuntDB store so past encodes can be
// listed and restored without scanning the archive directory.
package index

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/buntdb"
)

const uploadPrefix = "upload:"

// Record represents one completed encode.
type Record struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName,omitempty"`
	Encoding     string    `json:"encoding"`
	OriginalSize uint64    `json:"originalSize"`
	PayloadSize  uint64    `json:"payloadSize"`
	ContentHash  string    `json:"contentHash"`
	ManifestPath string    `json:"manifestPath"`
	PayloadPath  string    `json:"payloadPath"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store represents an upload index backed by BuntDB
type Store struct {
	db    *buntdb.DB
	mutex sync.RWMutex
}

// Open opens or creates an upload index at path. Use ":memory:" for an
// ephemeral index.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload index: %w", err)
	}

	if err := db.CreateIndex("created_at", uploadPrefix+"*", buntdb.IndexJSON("createdAt")); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the upload index
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Close()
}

// Put inserts or replaces an upload record
func (s *Store) Put(record Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal upload record: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(uploadPrefix+record.ID, string(data), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store upload record: %w", err)
	}
	return nil
}

// Get retrieves an upload record by ID
func (s *Store) Get(id string) (Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var record Record
	err := s.db.View(func(tx *buntdb.Tx) error {
		data, err := tx.Get(uploadPrefix + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(data), &record)
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to get upload record: %w", err)
	}
	return record, nil
}

// List returns all upload records ordered by creation time
func (s *Store) List() ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var records []Record
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("created_at", func(key, value string) bool {
			var record Record
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				return false
			}
			records = append(records, record)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list upload records: %w", err)
	}
	return records, nil
}

// Delete removes an upload record
func (s *Store) Delete(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(uploadPrefix + id); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// Shrink shrinks the database file
func (s *Store) Shrink() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Shrink()
}
