package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

const cacheVersion = "v1"

type cacheEntry struct {
	Rows     []models.Transaction
	StoredAt time.Time
}

// Cache keeps parsed transactions as gob files so a restart can skip
// parsing an unchanged source file. A Cache with an empty Dir is disabled.
type Cache struct {
	Dir string
}

func (c Cache) Enabled() bool {
	return c.Dir != ""
}

func (c Cache) filename(sourcePath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(sourcePath)
	return filepath.Join(c.Dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

// Get returns the cached dataset for sourcePath if the source has not been
// modified since the entry was stored.
func (c Cache) Get(sourcePath string) (models.Dataset, bool) {
	if !c.Enabled() {
		return models.Dataset{}, false
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return models.Dataset{}, false
	}

	f, err := os.Open(c.filename(sourcePath))
	if err != nil {
		return models.Dataset{}, false
	}
	defer f.Close()

	var entry cacheEntry
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		return models.Dataset{}, false
	}
	if !info.ModTime().Before(entry.StoredAt) {
		return models.Dataset{}, false
	}
	return models.NewDataset(entry.Rows), true
}

func (c Cache) Put(sourcePath string, ds models.Dataset) error {
	if !c.Enabled() {
		return nil
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	f, err := os.Create(c.filename(sourcePath))
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer f.Close()

	entry := cacheEntry{Rows: ds.Rows(), StoredAt: time.Now()}
	if err := gob.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	return nil
}
