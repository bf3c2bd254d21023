// Package web 本地 HTTP API 服务
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/smysle/anitrack-go/internal/catalog"
	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/internal/progress"
	"github.com/smysle/anitrack-go/internal/service"
	pkglogger "github.com/smysle/anitrack-go/pkg/logger"
	"github.com/smysle/anitrack-go/pkg/utils"
)

// Version 服务版本
const Version = "1.0.0"

// Catalog 番剧目录
type Catalog interface {
	Search(ctx context.Context, query string, page int) catalog.SearchResult
	Trending(ctx context.Context, period catalog.Period) []catalog.Anime
	Details(ctx context.Context, id string) *catalog.Anime
	Random(ctx context.Context) catalog.Anime
}

// Deps 服务依赖，Backup 可为 nil
type Deps struct {
	Config   *config.Config
	Catalog  Catalog
	Progress *progress.Store
	Library  *service.LibraryService
	Backup   *service.BackupService
}

// Server Web 服务器
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	catalog   Catalog
	progress  *progress.Store
	library   *service.LibraryService
	backup    *service.BackupService
	startTime time.Time
}

// New 创建 Web 服务器
func New(deps Deps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// 中间件
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		Output: pkglogger.Logger,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(deps.Config.API.AllowOrigins, ","),
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	server := &Server{
		app:       app,
		cfg:       deps.Config,
		catalog:   deps.Catalog,
		progress:  deps.Progress,
		library:   deps.Library,
		backup:    deps.Backup,
		startTime: time.Now(),
	}

	// 注册路由
	server.registerRoutes()

	return server
}

// registerRoutes 注册路由
func (s *Server) registerRoutes() {
	// 健康检查
	s.app.Get("/health", s.healthCheck)
	s.app.Get("/", s.healthCheck)

	// 详细状态
	s.app.Get("/status", s.detailedStatus)

	// API v1
	v1 := s.app.Group("/api/v1")
	v1.Get("/settings", s.getSettings)

	// 番剧目录
	cat := v1.Group("/catalog")
	cat.Get("/search", s.searchAnime)
	cat.Get("/trending", s.getTrending)
	cat.Get("/anime/:id", s.getAnime)
	cat.Get("/random", s.getRandom)

	// 追番进度
	prog := v1.Group("/progress")
	prog.Get("/", s.listProgress)
	prog.Get("/:id", s.getProgress)
	prog.Put("/:id", s.putProgress)
	prog.Patch("/:id", s.patchProgress)
	prog.Delete("/:id", s.deleteProgress)
	prog.Post("/:id/episode", s.updateEpisode)

	// 追番列表
	v1.Get("/library", s.listLibrary)
	v1.Post("/library/:id", s.addToLibrary)

	// 统计
	v1.Get("/stats", s.getStats)
	v1.Get("/stats/card.png", s.getStatsCard)

	// 备份
	if s.backup != nil {
		backups := v1.Group("/backups")
		backups.Get("/", s.listBackups)
		backups.Post("/", s.createBackup)
		backups.Post("/:name/restore", s.restoreBackup)
	}
}

// App 底层 fiber 应用（测试使用）
func (s *Server) App() *fiber.App {
	return s.app
}

// Start 启动服务器
func (s *Server) Start() error {
	if !s.cfg.API.Enabled {
		pkglogger.Info().Msg("【API服务】未启用，跳过...")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)
	pkglogger.Info().Str("addr", addr).Msg("【API服务】启动中...")

	return s.app.Listen(addr)
}

// Stop 停止服务器
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

// errorStatus 错误对应的 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, progress.ErrNotFound), errors.Is(err, service.ErrAnimeNotFound), errors.Is(err, fs.ErrNotExist):
		return fiber.StatusNotFound
	case errors.Is(err, progress.ErrInvalidEntry), errors.Is(err, service.ErrInvalidBackup):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyTracked):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// fail 输出错误响应
func fail(c *fiber.Ctx, err error) error {
	code := errorStatus(err)
	if code == fiber.StatusInternalServerError {
		pkglogger.Error().Err(err).Str("path", c.Path()).Msg("请求处理失败")
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// badRequest 参数错误
func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

// parseStatus 解析可选的 status 查询参数
func parseStatus(c *fiber.Ctx) (models.Status, bool) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return "", true
	}
	status := models.Status(raw)
	return status, status.Valid()
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

// StatusResponse 详细状态响应
type StatusResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Uptime  string        `json:"uptime"`
	System  SystemInfo    `json:"system"`
	Storage StorageStatus `json:"storage"`
	Catalog CatalogStatus `json:"catalog"`
}

// SystemInfo 系统信息
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     string `json:"mem_alloc"`
}

// StorageStatus 存储状态
type StorageStatus struct {
	Driver  string `json:"driver"`
	Entries int    `json:"entries"`
}

// CatalogStatus 番剧目录状态
type CatalogStatus struct {
	BaseURL    string `json:"base_url"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// detailedStatus 详细状态
func (s *Server) detailedStatus(c *fiber.Ctx) error {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return c.JSON(StatusResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		System: SystemInfo{
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     fmt.Sprintf("%.2f MB", float64(memStats.Alloc)/1024/1024),
		},
		Storage: StorageStatus{
			Driver:  s.cfg.Storage.Driver,
			Entries: len(s.progress.IDs()),
		},
		Catalog: CatalogStatus{
			BaseURL:    s.cfg.Catalog.BaseURL,
			TTLSeconds: s.cfg.Cache.TTLSeconds,
		},
	})
}

// StatusOption 状态选项
type StatusOption struct {
	Value models.Status `json:"value"`
	Label string        `json:"label"`
}

// SettingsResponse 前端需要的配置
type SettingsResponse struct {
	SearchDebounceMs     int            `json:"searchDebounceMs"`
	CacheTTLSeconds      int            `json:"cacheTtlSeconds"`
	EpisodeLengthMinutes int            `json:"episodeLengthMinutes"`
	Statuses             []StatusOption `json:"statuses"`
}

// getSettings 获取前端配置
func (s *Server) getSettings(c *fiber.Ctx) error {
	statuses := make([]StatusOption, 0, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		statuses = append(statuses, StatusOption{Value: st, Label: utils.StatusLabel(string(st))})
	}

	return c.JSON(SettingsResponse{
		SearchDebounceMs:     s.cfg.UI.SearchDebounceMs,
		CacheTTLSeconds:      s.cfg.Cache.TTLSeconds,
		EpisodeLengthMinutes: s.progress.EpisodeLength(),
		Statuses:             statuses,
	})
}
