package scorer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/helixir/citation-ranker/internal/domain"
)

// cacheRecord is one line of the persistent cache log.
type cacheRecord struct {
	Key   string               `json:"key"`
	Value domain.CitationScore `json:"value"`
}

// Cache is the persistent content-addressed store for citation scores,
// backed by an append-only newline-delimited JSON log.
//
// Properties, by contract rather than accident:
//   - Each record is one atomically written line, so concurrent processes
//     sharing the file never interleave partial records.
//   - Duplicate keys are harmless: Load replays the log in file order and
//     the last value for a key wins.
//   - Malformed lines are skipped silently on load; a partial trailing
//     record from a crash never aborts the replay.
//   - The log only grows. A crash mid-batch loses unresolved work, never
//     previously appended entries.
type Cache struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// OpenCache opens (creating if needed) the cache log at path. The parent
// directory is created if absent.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("scorer: create cache directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("scorer: open cache %s: %w", path, err)
	}
	return &Cache{path: path, file: f}, nil
}

// Path returns the cache log location.
func (c *Cache) Path() string { return c.path }

// Load reads the full log into an in-memory mapping, replaying records in
// order with last-write-wins reconciliation for duplicate keys.
func (c *Cache) Load() (map[string]domain.CitationScore, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.CitationScore{}, nil
		}
		return nil, fmt.Errorf("scorer: read cache %s: %w", c.path, err)
	}
	defer f.Close()

	entries := make(map[string]domain.CitationScore)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec cacheRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.Key == "" {
			// Unreadable lines are skipped; corruption must not abort the load.
			continue
		}
		entries[rec.Key] = rec.Value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scorer: scan cache %s: %w", c.path, err)
	}
	return entries, nil
}

// Append writes one record to the log as a single line and syncs it to disk
// before returning, so a resolved score survives a crash that follows it.
func (c *Cache) Append(key string, value domain.CitationScore) error {
	line, err := json.Marshal(cacheRecord{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("scorer: marshal cache record: %w", err)
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.file.Write(line); err != nil {
		return fmt.Errorf("scorer: append cache record: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("scorer: sync cache: %w", err)
	}
	return nil
}

// Close closes the underlying log file.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}
