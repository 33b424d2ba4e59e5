package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mkrogh/elregning/internal/common"
)

type memObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// Memory is an in-memory Store for tests and local development.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType, modTime: time.Now()}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	return obj.data, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) DeleteMany(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := m.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ListOlderThan(_ context.Context, prefix string, age time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-age)
	var keys []string
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) && obj.modTime.Before(cutoff) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "memory://" + key, nil
}

// Exists reports whether key is present.
func (m *Memory) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// SetModTime backdates an object, used when exercising age-based sweeps.
func (m *Memory) SetModTime(key string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.modTime = t
		m.objects[key] = obj
	}
}
