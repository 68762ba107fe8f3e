package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/risk"
)

// DefaultCacheTTL is the default time-to-live for cached alignments.
const DefaultCacheTTL = 1 * time.Hour

// cacheEntry holds a cached alignment and its expiration time.
type cacheEntry struct {
	alignment *align.Alignment
	expiresAt time.Time
}

// SegmentCache is a thread-safe, in-memory TTL cache of computed alignments.
// Keys combine the document id with a fingerprint of the text and excerpts,
// so a changed analysis under the same id never reuses a stale partition.
// Entries are lazily expired on access.
type SegmentCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewSegmentCache creates a new cache with the given default TTL.
func NewSegmentCache(defaultTTL time.Duration) *SegmentCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	return &SegmentCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Fingerprint hashes the parts of an analysis that affect alignment.
func Fingerprint(result *risk.AnalysisResult) string {
	hasher := sha256.New()
	hasher.Write([]byte(result.Text()))
	for _, record := range result.Records {
		hasher.Write([]byte{0})
		hasher.Write([]byte(strconv.Itoa(record.ID)))
		hasher.Write([]byte{0})
		hasher.Write([]byte(record.Level))
		hasher.Write([]byte{0})
		hasher.Write([]byte(record.Text))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func cacheKey(documentID string, result *risk.AnalysisResult) string {
	return documentID + "@" + Fingerprint(result)
}

// GetAlignment returns the cached alignment for the document, if present and fresh.
func (segmentCache *SegmentCache) GetAlignment(documentID string, result *risk.AnalysisResult) (*align.Alignment, bool) {
	key := cacheKey(documentID, result)

	segmentCache.mu.RLock()
	entry, exists := segmentCache.entries[key]
	segmentCache.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if segmentCache.now().After(entry.expiresAt) {
		segmentCache.mu.Lock()
		// Re-check in case another goroutine already removed or replaced it.
		if current, stillExists := segmentCache.entries[key]; stillExists && segmentCache.now().After(current.expiresAt) {
			delete(segmentCache.entries, key)
		}
		segmentCache.mu.Unlock()
		return nil, false
	}

	return entry.alignment, true
}

// PutAlignment stores an alignment with the default TTL.
func (segmentCache *SegmentCache) PutAlignment(documentID string, result *risk.AnalysisResult, alignment *align.Alignment) {
	key := cacheKey(documentID, result)

	segmentCache.mu.Lock()
	segmentCache.entries[key] = cacheEntry{
		alignment: alignment,
		expiresAt: segmentCache.now().Add(segmentCache.defaultTTL),
	}
	segmentCache.mu.Unlock()
}

// Invalidate removes every entry stored for documentID.
func (segmentCache *SegmentCache) Invalidate(documentID string) {
	prefix := documentID + "@"

	segmentCache.mu.Lock()
	for key := range segmentCache.entries {
		if strings.HasPrefix(key, prefix) {
			delete(segmentCache.entries, key)
		}
	}
	segmentCache.mu.Unlock()
}

// Len returns the number of entries currently in the cache (including potentially expired ones).
func (segmentCache *SegmentCache) Len() int {
	segmentCache.mu.RLock()
	count := len(segmentCache.entries)
	segmentCache.mu.RUnlock()
	return count
}
