// Package models 数据模型 - 键值存储
package models

import (
	"errors"
	"time"
)

// 保留的存储键，互不冲突
const (
	KeyProgress = "anitrack_progress"
	KeySettings = "anitrack_settings"
	KeyAPICache = "anitrack_api_cache"
)

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = errors.New("存储键不存在")

// KVRecord 键值记录表
type KVRecord struct {
	Key       string    `gorm:"column:kv_key;primaryKey;size:128" json:"key"`
	Value     []byte    `gorm:"column:value;type:blob" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (KVRecord) TableName() string {
	return "kv_records"
}
