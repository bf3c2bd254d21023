// Package repository 键值数据仓库
package repository

import (
	"errors"
	"fmt"

	"github.com/smysle/anitrack-go/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepository 基于 gorm 的键值仓库
type KVRepository struct {
	db *gorm.DB
}

// NewKVRepository 创建键值仓库
func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get 读取键值
func (r *KVRepository) Get(key string) ([]byte, error) {
	var rec models.KVRecord
	err := r.db.Where(&models.KVRecord{Key: key}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	return rec.Value, nil
}

// Put 写入键值（存在则覆盖）
func (r *KVRepository) Put(key string, value []byte) error {
	rec := models.KVRecord{Key: key, Value: value}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	return nil
}

// Delete 删除键值
func (r *KVRepository) Delete(key string) error {
	if err := r.db.Delete(&models.KVRecord{Key: key}).Error; err != nil {
		return fmt.Errorf("删除 %s 失败: %w", key, err)
	}
	return nil
}

// Close 关闭底层连接
func (r *KVRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
