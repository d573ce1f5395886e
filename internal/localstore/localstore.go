// Package localstore persists guest data as one JSON blob per guest. The
// blob is read once when the store opens and rewritten after every write.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"usaha/internal/core"
	"usaha/internal/memstore"
	"usaha/internal/reminder"
	"usaha/internal/store"
)

const blobExt = ".json"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Store is a guest backend rooted at a directory.
type Store struct {
	*memstore.Store
	dir string
}

var (
	_ store.Backend   = (*Store)(nil)
	_ reminder.Source = (*Store)(nil)
)

// Open reads every blob in dir, creating the directory when missing.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir}
	s.Store = memstore.NewWithCommit(s.write)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blobExt) {
			continue
		}
		owner := strings.TrimSuffix(e.Name(), blobExt)
		data, err := readBlob(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read blob %s: %w", e.Name(), err)
		}
		s.Seed(owner, data)
	}
	return s, nil
}

// Load reads the owner's blob. Unknown owners get an empty collection.
func (s *Store) Load(ctx context.Context, owner string) ([]core.Business, error) {
	if !ValidKey(owner) {
		return nil, store.ErrInvalidOwner
	}
	return s.Store.Load(ctx, owner)
}

// ValidKey reports whether owner can be used as a blob file name.
func ValidKey(owner string) bool {
	return owner != "" && !unsafeChars.MatchString(owner)
}

func (s *Store) path(owner string) string {
	return filepath.Join(s.dir, owner+blobExt)
}

// write replaces the owner's blob atomically: temp file, then rename.
func (s *Store) write(owner string, data memstore.OwnerData) error {
	if !ValidKey(owner) {
		return store.ErrInvalidOwner
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blob: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, owner+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(owner)); err != nil {
		return fmt.Errorf("replace blob: %w", err)
	}
	return nil
}

func readBlob(path string) (memstore.OwnerData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return memstore.OwnerData{}, err
	}
	var data memstore.OwnerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return memstore.OwnerData{}, err
	}
	return data, nil
}
