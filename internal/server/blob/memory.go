package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/google/uuid"
)

// MemoryBackend is a map-backed Backend for tests and local development.
// Safe for concurrent use.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

func (b *MemoryBackend) Put(ctx context.Context, data []byte) (string, error) {
	location := uuid.New().String()
	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	b.objects[location] = stored
	b.mu.Unlock()

	return location, nil
}

func (b *MemoryBackend) Get(ctx context.Context, location string) ([]byte, error) {
	b.mu.RLock()
	data, ok := b.objects[location]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFoundOnBackend, location)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, location string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[location]; !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFoundOnBackend, location)
	}
	delete(b.objects, location)
	return nil
}

// Len reports the number of stored objects, for assertions in tests.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
