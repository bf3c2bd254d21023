package database

import (
	"sync"

	"github.com/smysle/anitrack-go/internal/database/models"
)

// MemoryStore 内存存储
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	// FailWrites 非 nil 时 Put 返回该错误（模拟磁盘写满）
	FailWrites error
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get 读取键值
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, models.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put 写入键值
func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Delete 删除键值
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	return nil
}
