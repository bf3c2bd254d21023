// Package config 配置管理模块
package config

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// Config 全局配置结构
type Config struct {
	Log       LogConfig       `json:"log"`
	Catalog   CatalogConfig   `json:"catalog"`
	Cache     CacheConfig     `json:"cache"`
	Storage   StorageConfig   `json:"storage"`
	Tracker   TrackerConfig   `json:"tracker"`
	UI        UIConfig        `json:"ui"`
	API       APIConfig       `json:"api"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Backup    BackupConfig    `json:"backup"`
}

// LogConfig 日志配置
type LogConfig struct {
	Debug   bool   `json:"debug"`
	File    string `json:"file"`
	NoColor bool   `json:"no_color"`
}

// CatalogConfig 番剧目录 API 配置
type CatalogConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	RetryCount     int    `json:"retry_count"`
	RetryWaitMs    int    `json:"retry_wait_ms"`
	TrendingLimit  int    `json:"trending_limit"`
	SearchLimit    int    `json:"search_limit"`
	// 上游限流：每秒 3 次，每分钟 60 次
	RequestsPerSecond int `json:"requests_per_second"`
	RequestsPerMinute int `json:"requests_per_minute"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	TTLSeconds             int `json:"ttl_seconds"`
	CleanupIntervalSeconds int `json:"cleanup_interval_seconds"`
}

// StorageConfig 本地存储配置
type StorageConfig struct {
	Driver string `json:"driver"` // bolt / sqlite / memory
	Path   string `json:"path"`
}

// TrackerConfig 追番统计配置
type TrackerConfig struct {
	EpisodeLengthMinutes int `json:"episode_length_minutes"`
}

// UIConfig 展示层配置（核心不使用，仅下发给前端）
type UIConfig struct {
	SearchDebounceMs int `json:"search_debounce_ms"`
}

// APIConfig 本地 HTTP API 配置
type APIConfig struct {
	Enabled      bool     `json:"enabled"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	WarmTrending        bool   `json:"warm_trending"`
	WarmIntervalMinutes int    `json:"warm_interval_minutes"`
	BackupProgress      bool   `json:"backup_progress"`
	BackupAt            string `json:"backup_at"`
}

// BackupConfig 备份配置
type BackupConfig struct {
	Dir      string `json:"dir"`
	MaxCount int    `json:"max_count"`
	Compress bool   `json:"compress"`
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load 加载配置文件，文件不存在时使用默认配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	// 设置默认值
	config.setDefaults()

	return &config, nil
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://api.jikan.moe/v4"
	}
	if c.Catalog.TimeoutSeconds == 0 {
		c.Catalog.TimeoutSeconds = 10
	}
	// 写 -1 关闭重试
	if c.Catalog.RetryCount == 0 {
		c.Catalog.RetryCount = 1
	}
	if c.Catalog.RetryWaitMs == 0 {
		c.Catalog.RetryWaitMs = 500
	}
	if c.Catalog.TrendingLimit == 0 {
		c.Catalog.TrendingLimit = 20
	}
	if c.Catalog.SearchLimit == 0 {
		c.Catalog.SearchLimit = 20
	}
	if c.Catalog.RequestsPerSecond == 0 {
		c.Catalog.RequestsPerSecond = 3
	}
	if c.Catalog.RequestsPerMinute == 0 {
		c.Catalog.RequestsPerMinute = 60
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Cache.CleanupIntervalSeconds == 0 {
		c.Cache.CleanupIntervalSeconds = 600
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "bolt"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/anitrack.db"
	}
	if c.Tracker.EpisodeLengthMinutes == 0 {
		c.Tracker.EpisodeLengthMinutes = 24
	}
	if c.UI.SearchDebounceMs == 0 {
		c.UI.SearchDebounceMs = 300
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}
	if c.API.Port == 0 {
		c.API.Port = 8839
	}
	if len(c.API.AllowOrigins) == 0 {
		c.API.AllowOrigins = []string{"*"}
	}
	if c.Scheduler.WarmIntervalMinutes == 0 {
		c.Scheduler.WarmIntervalMinutes = 30
	}
	if c.Scheduler.BackupAt == "" {
		c.Scheduler.BackupAt = "03:00"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "backups"
	}
	if c.Backup.MaxCount == 0 {
		c.Backup.MaxCount = 7
	}
}

// CacheTTL 缓存有效期
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// CleanupInterval 缓存清理间隔
func (c *CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// Timeout 请求超时
func (c *CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryWait 重试等待时间
func (c *CatalogConfig) RetryWait() time.Duration {
	return time.Duration(c.RetryWaitMs) * time.Millisecond
}
