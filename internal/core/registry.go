package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Registry persists file types.
type Registry interface {
	// Load returns the type with id or ErrNotFound.
	Load(ctx context.Context, id string) (*FileType, error)
	// LoadAll returns types in display order (weight, then creation).
	LoadAll(ctx context.Context, includeDisabled bool) ([]FileType, error)
	// Insert creates t. An existing id is a ValidationError.
	Insert(ctx context.Context, t *FileType) error
	// Save creates or updates t.
	Save(ctx context.Context, t *FileType) error
	// Delete removes the type and its field attachments.
	Delete(ctx context.Context, id string) error
}

// SortForDisplay orders types by weight, then creation time, then id.
func SortForDisplay(types []FileType) {
	slices.SortStableFunc(types, func(a, b FileType) int {
		if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// MemoryRegistry keeps file types in process memory. Values are copied in
// and out so callers never share state with the registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	types map[string]*FileType
	now   func() time.Time
}

// NewMemoryRegistry returns a registry seeded with the default image type.
func NewMemoryRegistry() *MemoryRegistry {
	r := &MemoryRegistry{
		types: make(map[string]*FileType),
		now:   time.Now,
	}
	seed := DefaultImageType()
	seed.Weight = 1
	seed.CreatedAt = r.now()
	seed.UpdatedAt = seed.CreatedAt
	r.types[seed.ID] = seed
	return r
}

func (r *MemoryRegistry) Load(_ context.Context, id string) (*FileType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("file type %q: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (r *MemoryRegistry) LoadAll(_ context.Context, includeDisabled bool) ([]FileType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]FileType, 0, len(r.types))
	for _, t := range r.types {
		if !includeDisabled && !t.Enabled() {
			continue
		}
		out = append(out, *t.Clone())
	}
	SortForDisplay(out)
	return out, nil
}

func (r *MemoryRegistry) Insert(_ context.Context, t *FileType) error {
	if err := t.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.ID]; exists {
		return Invalid("id", "The machine-readable name is already in use. It must be unique.")
	}
	r.insertLocked(t)
	return nil
}

func (r *MemoryRegistry) Save(_ context.Context, t *FileType) error {
	if err := t.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.types[t.ID]
	if !ok {
		r.insertLocked(t)
		return nil
	}

	c := t.Clone()
	c.Weight = existing.Weight
	c.System = existing.System
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = r.now()
	r.types[t.ID] = c

	t.Weight, t.System, t.CreatedAt, t.UpdatedAt = c.Weight, c.System, c.CreatedAt, c.UpdatedAt
	return nil
}

func (r *MemoryRegistry) insertLocked(t *FileType) {
	weight := 0
	for _, e := range r.types {
		weight = max(weight, e.Weight)
	}
	c := t.Clone()
	c.Weight = weight + 1
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = StatusEnabled
	}
	r.types[c.ID] = c

	t.Weight, t.Status, t.CreatedAt, t.UpdatedAt = c.Weight, c.Status, c.CreatedAt, c.UpdatedAt
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[id]
	if !ok {
		return fmt.Errorf("file type %q: %w", id, ErrNotFound)
	}
	if t.System {
		return fmt.Errorf("file type %q is a system type: %w", id, ErrConflict)
	}
	delete(r.types, id)
	return nil
}
