package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store, used by tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	bucket  bool
	objects map[string]memObject
	now     func() time.Time
}

type memObject struct {
	data     []byte
	modified time.Time
}

// NewMemory returns an empty store whose bucket does not exist yet.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject), now: time.Now}
}

// BucketExists reports whether EnsureBucket has been called.
func (m *Memory) BucketExists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bucket
}

// EnsureBucket implements Store.
func (m *Memory) EnsureBucket(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket = true
	return nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, data)
	return nil
}

// PutIfAbsent implements Store.
func (m *Memory) PutIfAbsent(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return fmt.Errorf("put '%s': %w", key, ErrPreconditionFailed)
	}
	m.put(key, data)
	return nil
}

// PutIfMatch implements Store.
func (m *Memory) PutIfMatch(_ context.Context, key string, data []byte, _, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("put '%s': %w", key, ErrNotFound)
	}
	if obj.info(key).ETag != etag {
		return fmt.Errorf("put '%s': %w", key, ErrPreconditionFailed)
	}
	m.put(key, data)
	return nil
}

func (m *Memory) put(key string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = memObject{data: cp, modified: m.now()}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get '%s': %w", key, ErrNotFound)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

// Stat implements Store.
func (m *Memory) Stat(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("stat '%s': %w", key, ErrNotFound)
	}
	return obj.info(key), nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, obj.info(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Remove implements Store. Removing a missing key is not an error, as with S3.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (o memObject) info(key string) ObjectInfo {
	sum := md5.Sum(o.data)
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: o.modified,
	}
}
