// Package cache persists the last-known chat records on disk so list/show
// surfaces can render without the backend. One msgpack file per chat id.
//
// The cache is strictly a convenience copy of backend state: every
// successful fetch overwrites it, and losing it costs nothing but a refetch.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/types"
)

// ErrNotCached is returned by Get when no record is cached for the id.
var ErrNotCached = errors.New("chat not cached")

// recordExt is the cache file extension.
const recordExt = ".msgpack"

// Store is a directory of cached chat records.
type Store struct {
	dir    string
	logger *log.Logger
}

// NewStore creates the cache directory if needed and returns a store over it.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Put writes the record, replacing any cached copy. The write goes through a
// temp file and rename so readers never observe a half-written record.
func (s *Store) Put(rec *types.ChatRecord) error {
	if err := validateID(rec.ID); err != nil {
		return err
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode chat %s: %w", rec.ID, err)
	}

	path := s.recordPath(rec.ID)
	tmp, err := os.CreateTemp(s.dir, rec.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cache: write chat %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cache: commit chat %s: %w", rec.ID, err)
	}
	return nil
}

// Get reads the cached record for id. Returns ErrNotCached when absent.
func (s *Store) Get(id string) (*types.ChatRecord, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("cache: read chat %s: %w", id, err)
	}

	var rec types.ChatRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("cache: decode chat %s: %w", id, err)
	}
	return &rec, nil
}

// List returns all cached records, newest update first. Records that fail to
// decode are logged and skipped rather than failing the whole listing.
func (s *Store) List() ([]types.ChatRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: read dir: %w", err)
	}

	recs := make([]types.ChatRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), recordExt)
		rec, err := s.Get(id)
		if err != nil {
			s.logger.Warn("skipping unreadable cache entry", map[string]any{
				"entry": entry.Name(),
				"error": err.Error(),
			})
			continue
		}
		recs = append(recs, *rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})
	return recs, nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// validateID rejects ids that could escape the cache directory.
func validateID(id string) error {
	if id == "" {
		return errors.New("cache: empty chat id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("cache: unsafe chat id %q", id)
	}
	return nil
}
