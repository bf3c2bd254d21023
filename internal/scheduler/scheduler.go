// Package scheduler 定时任务调度
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/smysle/anitrack-go/internal/catalog"
	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/internal/service"
	"github.com/smysle/anitrack-go/pkg/logger"
)

// 任务标签
const (
	TaskWarmTrending = "warm_trending"
	TaskBackup       = "backup"
)

// warmTimeout 预热单次超时
const warmTimeout = 2 * time.Minute

// TrendingSource 热门榜来源
type TrendingSource interface {
	Trending(ctx context.Context, period catalog.Period) []catalog.Anime
}

// Backuper 备份执行者
type Backuper interface {
	Backup(compress bool) (*service.BackupResult, error)
	CleanOldBackups(maxCount int) (int, error)
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron     *gocron.Scheduler
	cfg      *config.Config
	trending TrendingSource
	backup   Backuper
}

// New 创建调度器，trending 或 backup 为 nil 时跳过对应任务
func New(cfg *config.Config, trending TrendingSource, backup Backuper) *Scheduler {
	s := gocron.NewScheduler(time.Local)
	s.SetMaxConcurrentJobs(2, gocron.RescheduleMode)

	return &Scheduler{
		cron:     s,
		cfg:      cfg,
		trending: trending,
		backup:   backup,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	logger.Info().Msg("启动定时任务调度器")

	// 注册定时任务
	if err := s.registerJobs(); err != nil {
		return err
	}

	// 异步启动
	s.cron.StartAsync()
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	logger.Info().Msg("停止定时任务调度器")
	s.cron.Stop()
}

// JobCount 已注册任务数
func (s *Scheduler) JobCount() int {
	return s.cron.Len()
}

// registerJobs 注册所有定时任务
func (s *Scheduler) registerJobs() error {
	cfg := s.cfg.Scheduler

	// 热门榜预热，保持缓存处于有效期内
	if cfg.WarmTrending && s.trending != nil {
		minutes := cfg.WarmIntervalMinutes
		if minutes <= 0 {
			minutes = 30
		}
		if _, err := s.cron.Every(minutes).Minutes().Tag(TaskWarmTrending).Do(s.warmTrending); err != nil {
			return fmt.Errorf("注册热门榜预热任务失败: %w", err)
		}
		logger.Info().Int("interval_minutes", minutes).Msg("已注册: 热门榜预热任务")
	}

	// 追番记录备份，每天一次
	if cfg.BackupProgress && s.backup != nil {
		at := cfg.BackupAt
		if at == "" {
			at = "03:00"
		}
		if _, err := s.cron.Every(1).Day().At(at).Tag(TaskBackup).Do(s.backupProgress); err != nil {
			return fmt.Errorf("注册备份任务失败: %w", err)
		}
		logger.Info().Str("at", at).Msg("已注册: 追番记录备份任务")
	}
	return nil
}

// RemoveJob 移除任务
func (s *Scheduler) RemoveJob(tag string) error {
	return s.cron.RemoveByTag(tag)
}

// warmTrending 预热热门榜缓存
func (s *Scheduler) warmTrending() {
	logger.Debug().Msg("执行定时任务: 热门榜预热")

	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	// day/week/month 共用同一榜单，只需预热两种
	for _, period := range []catalog.Period{catalog.PeriodWeek, catalog.PeriodAll} {
		records := s.trending.Trending(ctx, period)
		logger.Debug().Str("period", string(period)).Int("count", len(records)).Msg("热门榜预热完成")
	}
}

// backupProgress 备份追番记录
func (s *Scheduler) backupProgress() {
	logger.Info().Msg("执行定时任务: 追番记录备份")

	// 执行备份
	result, err := s.backup.Backup(s.cfg.Backup.Compress)
	if err != nil {
		logger.Error().Err(err).Msg("定时备份失败")
		return
	}

	logger.Info().
		Str("file", result.Filename).
		Int64("size", result.Size).
		Int("records", result.Records).
		Msg("定时备份完成")

	// 清理旧备份
	deleted, err := s.backup.CleanOldBackups(s.cfg.Backup.MaxCount)
	if err != nil {
		logger.Warn().Err(err).Msg("清理旧备份失败")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("已清理旧备份")
	}
}

// RunNow 立即执行指定任务（用于调试）
func (s *Scheduler) RunNow(taskName string) error {
	switch taskName {
	case TaskWarmTrending:
		if s.trending == nil {
			return fmt.Errorf("任务未启用: %s", taskName)
		}
		s.warmTrending()
	case TaskBackup:
		if s.backup == nil {
			return fmt.Errorf("任务未启用: %s", taskName)
		}
		s.backupProgress()
	default:
		logger.Warn().Str("task", taskName).Msg("未知任务")
		return fmt.Errorf("未知任务: %s", taskName)
	}
	return nil
}
