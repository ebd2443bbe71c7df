package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory is an in-process ObjectStore for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

func NewMemory() *Memory {
	return &Memory{objects: map[string]memoryObject{}}
}

func (m *Memory) Put(_ context.Context, key string, body io.Reader, _ int64, _ PutOptions) (ObjectInfo, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read object body: %w", err)
	}
	sum := md5.Sum(data)
	info := ObjectInfo{Key: cleaned, Size: int64(len(data)), ETag: hex.EncodeToString(sum[:]), LastModified: time.Now().UTC()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[cleaned] = memoryObject{data: data, info: info}
	return info, nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) Stat(_ context.Context, key string) (ObjectInfo, error) {
	obj, err := m.lookup(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	return obj.info, nil
}

func (m *Memory) lookup(key string) (memoryObject, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return memoryObject{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[cleaned]
	if !ok {
		return memoryObject{}, ErrObjectNotFound
	}
	return obj, nil
}
