package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/pkg/logger"
	"github.com/timshannon/bolthold"
)

// boltRecord bolthold 中保存的值
type boltRecord struct {
	Value     []byte
	UpdatedAt time.Time
}

// BoltStore 基于 bolthold 的文件存储
type BoltStore struct {
	store *bolthold.Store
}

// OpenBolt 打开 bolt 数据文件
func OpenBolt(path string) (*BoltStore, error) {
	store, err := bolthold.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("打开 bolt 存储失败: %w", err)
	}
	logger.Info().Str("path", path).Msg("bolt 存储打开成功")
	return &BoltStore{store: store}, nil
}

// Get 读取键值
func (s *BoltStore) Get(key string) ([]byte, error) {
	var rec boltRecord
	if err := s.store.Get(key, &rec); err != nil {
		if errors.Is(err, bolthold.ErrNotFound) {
			return nil, models.ErrKeyNotFound
		}
		return nil, fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	return rec.Value, nil
}

// Put 写入键值，事务提交即落盘
func (s *BoltStore) Put(key string, value []byte) error {
	rec := boltRecord{Value: value, UpdatedAt: time.Now()}
	if err := s.store.Upsert(key, &rec); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	return nil
}

// Delete 删除键值，键不存在不视为错误
func (s *BoltStore) Delete(key string) error {
	err := s.store.Delete(key, &boltRecord{})
	if err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return fmt.Errorf("删除 %s 失败: %w", key, err)
	}
	return nil
}

// Close 关闭存储
func (s *BoltStore) Close() error {
	return s.store.Close()
}
