package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

// Store persists the ordered queue item list. Save is write-through: it is
// called on every mutation so a crash loses at most the in-flight item's
// transient SYNCING marker.
type Store interface {
	Load() ([]models.QueueItem, error)
	Save(items []models.QueueItem) error
}

// FileStore keeps the queue as a single JSON file under a base directory.
type FileStore struct {
	path string
}

// NewFileStore ensures the directory exists and returns a handle.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "./data/queue"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, "queue.json")}, nil
}

// Load reads the persisted item list. A missing file is an empty queue.
func (s *FileStore) Load() ([]models.QueueItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var items []models.QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode queue file: %w", err)
	}
	return items, nil
}

// Save atomically replaces the persisted item list (write to a temp file,
// then rename) so a crash mid-write cannot corrupt the queue.
func (s *FileStore) Save(items []models.QueueItem) error {
	if items == nil {
		items = []models.QueueItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace queue file: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	items []models.QueueItem
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load returns a copy of the stored items.
func (s *MemoryStore) Load() ([]models.QueueItem, error) {
	out := make([]models.QueueItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Save replaces the stored items.
func (s *MemoryStore) Save(items []models.QueueItem) error {
	s.items = make([]models.QueueItem, len(items))
	copy(s.items, items)
	return nil
}
