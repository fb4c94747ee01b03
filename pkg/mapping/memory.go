package mapping

import "sync"

// MemoryBackend keeps blobs in a map. Failures can be injected with FailSaves.
type MemoryBackend struct {
	mu        sync.Mutex
	data      map[string][]byte
	FailSaves error
}

// NewMemoryBackend returns an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Load implements Backend
func (b *MemoryBackend) Load(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save implements Backend
func (b *MemoryBackend) Save(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailSaves != nil {
		return b.FailSaves
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	b.data[key] = stored
	return nil
}
