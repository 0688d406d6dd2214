package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store is the object-store collaborator. Template content and exported
// artifacts live behind it; historical versions are never assumed to be
// resident in memory.
type Store interface {
	// Put stores data under ref and returns the ref actually used. An empty
	// ref asks the store to derive a content-addressed one.
	Put(ctx context.Context, ref string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// ErrNotFound indicates the ref has no stored object.
var ErrNotFound = errors.New("blob not found")

// SumRef derives a content-addressed ref for data.
func SumRef(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256/" + hex.EncodeToString(sum[:])
}

// Memory implements Store in process. Useful for tests and the smoke binary.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, ref string, data []byte) (string, error) {
	if ref = strings.TrimSpace(ref); ref == "" {
		ref = SumRef(data)
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = cp
	return ref, nil
}

func (m *Memory) Get(ctx context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
