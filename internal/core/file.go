package core

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// File is a committed upload.
type File struct {
	ID          uuid.UUID         `json:"id"`
	TypeID      string            `json:"type"`
	Scheme      string            `json:"scheme"`
	URI         string            `json:"uri"`
	Filename    string            `json:"filename"`
	MimeType    string            `json:"mime_type"`
	Size        int64             `json:"size"`
	FieldValues map[string]string `json:"fields,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// FileRepository persists committed files.
type FileRepository interface {
	// Insert stores f. An existing f.ID is ErrConflict and stores nothing.
	Insert(ctx context.Context, f *File) error
	Get(ctx context.Context, id uuid.UUID) (*File, error)
	CountByType(ctx context.Context, typeID string) (int64, error)
}

// MemoryFileRepository keeps files in process memory.
type MemoryFileRepository struct {
	mu    sync.RWMutex
	files map[uuid.UUID]File
}

// NewMemoryFileRepository returns an empty repository.
func NewMemoryFileRepository() *MemoryFileRepository {
	return &MemoryFileRepository{files: make(map[uuid.UUID]File)}
}

func (m *MemoryFileRepository) Insert(_ context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[f.ID]; exists {
		return fmt.Errorf("file %s already committed: %w", f.ID, ErrConflict)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	c := *f
	c.FieldValues = maps.Clone(f.FieldValues)
	m.files[f.ID] = c
	return nil
}

func (m *MemoryFileRepository) Get(_ context.Context, id uuid.UUID) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	f.FieldValues = maps.Clone(f.FieldValues)
	return &f, nil
}

func (m *MemoryFileRepository) CountByType(_ context.Context, typeID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, f := range m.files {
		if f.TypeID == typeID {
			n++
		}
	}
	return n, nil
}
