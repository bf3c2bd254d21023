// Package database 本地键值存储
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/internal/database/repository"
	"github.com/smysle/anitrack-go/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 存储驱动
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store 键值存储接口，Put 返回时数据必须已落盘
type Store interface {
	// Get 读取键值，不存在时返回 models.ErrKeyNotFound
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Open 按配置打开存储
func Open(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		logger.Info().Msg("使用内存存储，进程退出后数据不会保留")
		return NewMemoryStore(), nil
	case DriverBolt, "":
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		return OpenBolt(cfg.Path)
	case DriverSQLite:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return repository.NewKVRepository(db), nil
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Driver)
	}
}

// OpenSQLite 打开 SQLite 数据库并迁移表结构
func OpenSQLite(path string) (*gorm.DB, error) {
	// 配置 GORM
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}

	// SQLite 单写者
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.KVRecord{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite 数据库打开成功")
	return db, nil
}

// ensureDir 确保数据文件所在目录存在
func ensureDir(path string) error {
	if path == "" {
		return fmt.Errorf("存储路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}
	return nil
}
