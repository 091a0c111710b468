package session

import (
	"sync"

	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
)

// MemoryBackend is a map-backed Backend. Values live as long as the value
// does.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (b *MemoryBackend) Put(name string, value string) error {
	b.mu.Lock()
	b.data[name] = value
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Get(name string) (string, bool, error) {
	b.mu.RLock()
	value, ok := b.data[name]
	b.mu.RUnlock()
	return value, ok, nil
}

func (b *MemoryBackend) Delete(name string) error {
	b.mu.Lock()
	delete(b.data, name)
	b.mu.Unlock()
	return nil
}

// Names returns a snapshot of the stored names.
func (b *MemoryBackend) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.data))
	for name := range b.data {
		names = append(names, name)
	}
	return names
}

// NewMemoryStore returns a Persistent store over a fresh MemoryBackend.
func NewMemoryStore(
	creds *credentials.Credentials,
	opts ...Option,
) *Persistent {
	return NewPersistent(creds, NewMemoryBackend(), opts...)
}
