package store

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

type memoryRecord struct {
	file *types.AnnotationFile
	id   types.ContentID
}

// MemoryStore implements Store using in-memory data structures.
// No CGO dependency required. Stored files are shared with the caller and
// must be treated as read-only.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string                // URIs in insertion order
	files map[string]memoryRecord // keyed by URI
	ids   map[types.ContentID]int // reference count per content ID
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		order: make([]string, 0),
		files: make(map[string]memoryRecord),
		ids:   make(map[types.ContentID]int),
	}
}

// AddFile stores a file, replacing any earlier file with the same URI.
func (m *MemoryStore) AddFile(file *types.AnnotationFile, id types.ContentID) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, exists := m.files[file.URI]; exists {
		m.release(prev.id)
		m.removeFromOrder(file.URI)
	}

	m.files[file.URI] = memoryRecord{file: file, id: id}
	m.order = append(m.order, file.URI)
	m.ids[id]++
	return nil
}

// GetFile retrieves a file by URI.
func (m *MemoryStore) GetFile(uri string) (*types.AnnotationFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.files[uri]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", uri, ErrNotFound)
	}
	return rec.file, nil
}

// ListFiles returns a summary of every stored file in insertion order.
func (m *MemoryStore) ListFiles() ([]FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FileRecord, 0, len(m.order))
	for _, uri := range m.order {
		rec := m.files[uri]
		result = append(result, FileRecord{
			URI:       uri,
			ContentID: rec.id,
			Targets:   len(rec.file.Targets),
			Terms:     rec.file.TermCount(),
		})
	}
	return result, nil
}

// GetTerms returns every stored term for target.
func (m *MemoryStore) GetTerms(target string) ([]*types.Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Element{}
	for _, uri := range m.order {
		for _, t := range m.files[uri].file.Targets {
			if t.Name == target {
				result = append(result, t.Terms...)
			}
		}
	}
	return result, nil
}

// FileExists checks if content with this ID has already been stored.
func (m *MemoryStore) FileExists(id types.ContentID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ids[id] > 0, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) release(id types.ContentID) {
	if m.ids[id] <= 1 {
		delete(m.ids, id)
		return
	}
	m.ids[id]--
}

func (m *MemoryStore) removeFromOrder(uri string) {
	for i, u := range m.order {
		if u == uri {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
