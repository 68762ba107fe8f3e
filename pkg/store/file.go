// Package store is the persistence boundary for analysis results: a
// file-backed store of extractor payloads keyed by document id, and an
// in-memory cache of computed alignments.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/coolbeans/clausemark/pkg/risk"
)

// ErrNotFound is returned when no payload is stored under a document id.
var ErrNotFound = errors.New("analysis not found")

// ErrInvalidID is returned for document ids that cannot name a file.
var ErrInvalidID = errors.New("invalid document id")

var documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

const payloadExtension = ".json"

// FileStore keeps one JSON payload per document in a directory.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(documentID string) (string, error) {
	if !documentIDPattern.MatchString(documentID) || strings.Contains(documentID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, documentID)
	}
	return filepath.Join(s.dir, documentID+payloadExtension), nil
}

// Put validates and stores a raw extractor payload. The payload is stored
// as received so field-level defaulting is re-applied on every read.
func (s *FileStore) Put(documentID string, payload []byte) error {
	path, err := s.path(documentID)
	if err != nil {
		return err
	}
	if _, err := risk.DecodeAnalysis(payload); err != nil {
		return fmt.Errorf("storing %s: %w", documentID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", documentID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", documentID, err)
	}
	return nil
}

// GetRaw returns the stored payload bytes.
func (s *FileStore) GetRaw(documentID string) ([]byte, error) {
	path, err := s.path(documentID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", documentID, err)
	}
	return data, nil
}

// Get returns the decoded analysis stored under documentID.
func (s *FileStore) Get(documentID string) (*risk.AnalysisResult, error) {
	data, err := s.GetRaw(documentID)
	if err != nil {
		return nil, err
	}
	result, err := risk.DecodeAnalysis(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", documentID, err)
	}
	return result, nil
}

// Delete removes the payload stored under documentID.
func (s *FileStore) Delete(documentID string) error {
	path, err := s.path(documentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		return fmt.Errorf("deleting %s: %w", documentID, err)
	}
	return nil
}

// List returns the stored document ids in sorted order.
func (s *FileStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, payloadExtension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, payloadExtension))
	}
	sort.Strings(ids)
	return ids, nil
}
