// Package store persists CarRecords to a single JSON array file, upserting
// by URL.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/autospot-crawl/internal/utils/output"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

// Options configures a JSONStore
type Options struct {
	// SaveEach rewrites the file after every upsert
	SaveEach bool
}

// JSONStore is an in-memory record collection backed by a JSON file
type JSONStore struct {
	path string
	opts Options

	mu      sync.Mutex
	records []models.CarRecord
	index   map[string]int
	dirty   bool
}

// Open loads the collection at path. A missing, empty or unreadable file
// starts an empty collection which replaces the file on the next flush.
func Open(path string, opts Options) (*JSONStore, error) {
	s := &JSONStore{
		path:  path,
		opts:  opts,
		index: make(map[string]int),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", path).Msg("Output file not found, starting a new collection")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var existing []models.CarRecord
	if err := json.Unmarshal(data, &existing); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Output file is not a valid record list, it will be overwritten")
		return s, nil
	}

	for _, r := range existing {
		s.put(r)
	}
	log.Info().Str("path", path).Int("records", len(s.records)).Msg("Loaded existing records")
	return s, nil
}

// Upsert replaces the record with the same URL or appends a new one. It
// reports whether the record was new.
func (s *JSONStore) Upsert(record models.CarRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := s.put(record)
	s.dirty = true

	if s.opts.SaveEach {
		if err := s.writeLocked(); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// Flush writes the collection if it changed since the last write
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.writeLocked()
}

// Records returns a copy of the collection in file order
func (s *JSONStore) Records() []models.CarRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CarRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records
func (s *JSONStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Path returns the backing file path
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) put(record models.CarRecord) bool {
	if i, ok := s.index[record.URL]; ok && record.URL != "" {
		s.records[i] = record
		return false
	}
	s.records = append(s.records, record)
	if record.URL != "" {
		s.index[record.URL] = len(s.records) - 1
	}
	return true
}

// writeLocked replaces the file atomically. Caller holds mu.
func (s *JSONStore) writeLocked() error {
	records := s.records
	if records == nil {
		records = []models.CarRecord{}
	}

	var buf bytes.Buffer
	if err := output.WriteJSON(&buf, records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		log.Debug().Err(err).Str("path", tmpName).Msg("Could not set file mode")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}

	s.dirty = false
	log.Debug().Str("path", s.path).Int("records", len(records)).Msg("Records saved")
	return nil
}
