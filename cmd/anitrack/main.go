// AniTrack - Go Version
// 本地追番进度管理服务
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/smysle/anitrack-go/internal/catalog"
	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/internal/database"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/internal/progress"
	"github.com/smysle/anitrack-go/internal/scheduler"
	"github.com/smysle/anitrack-go/internal/service"
	"github.com/smysle/anitrack-go/internal/web"
	"github.com/smysle/anitrack-go/pkg/logger"
	"github.com/smysle/anitrack-go/pkg/utils"
)

var (
	configPath = flag.String("config", "config.json", "配置文件路径")
	debug      = flag.Bool("debug", false, "调试模式")
	backupNow  = flag.Bool("backup", false, "立即备份追番记录后退出")
)

func main() {
	flag.Parse()

	// 初始化日志
	logger.Init(logger.Options{Debug: *debug})
	logger.Info().Msg("AniTrack Go 启动中...")

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	logger.Init(logger.Options{
		Debug:   *debug || cfg.Log.Debug,
		File:    cfg.Log.File,
		NoColor: cfg.Log.NoColor,
	})
	logger.Info().Str("path", *configPath).Msg("配置加载完成")

	// 初始化存储
	store, err := database.Open(&cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()
	logger.Info().Str("driver", cfg.Storage.Driver).Str("path", cfg.Storage.Path).Msg("存储打开成功")

	// 加载追番记录
	tracker := progress.NewStore(store, progress.WithEpisodeLength(cfg.Tracker.EpisodeLengthMinutes))
	if err := tracker.Load(); err != nil {
		logger.Error().Err(err).Msg("读取追番记录失败，使用空记录")
	}
	tracker.Subscribe(func(c models.Collection) {
		logger.Debug().Int("count", len(c)).Msg("追番记录已更新")
	})

	// 番剧目录客户端
	cache := utils.NewCache(cfg.Cache.CacheTTL(), cfg.Cache.CleanupInterval())
	catalogClient := catalog.NewClient(&cfg.Catalog, cache)

	// 业务服务
	library := service.NewLibraryService(catalogClient, tracker)
	backupSvc, err := service.NewBackupService(&cfg.Backup, tracker)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化备份服务失败")
	}

	if *backupNow {
		result, err := backupSvc.Backup(cfg.Backup.Compress)
		if err != nil {
			logger.Fatal().Err(err).Msg("备份失败")
		}
		logger.Info().Str("file", result.FilePath).Str("size", service.FormatSize(result.Size)).Msg("备份完成")
		return
	}

	// 初始化定时任务调度器
	sched := scheduler.New(cfg, catalogClient, backupSvc)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("启动定时任务失败")
	}
	defer sched.Stop()

	// 初始化 Web API 服务
	webServer := web.New(web.Deps{
		Config:   cfg,
		Catalog:  catalogClient,
		Progress: tracker,
		Library:  library,
		Backup:   backupSvc,
	})
	go func() {
		if err := webServer.Start(); err != nil {
			logger.Error().Err(err).Msg("Web API 服务启动失败")
		}
	}()
	defer webServer.Stop()

	// 监听系统信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stats := tracker.ComputeStats()
	logger.Info().
		Int("tracked", stats.Total).
		Int("watching", stats.Watching).
		Msg("AniTrack Go 启动成功")
	logger.Info().Msg("按 Ctrl+C 停止...")

	// 等待退出信号
	<-quit

	logger.Info().Msg("正在关闭服务...")
}
