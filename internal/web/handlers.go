package web

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smysle/anitrack-go/internal/catalog"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/internal/progress"
	"github.com/smysle/anitrack-go/pkg/imggen"
	pkglogger "github.com/smysle/anitrack-go/pkg/logger"
	"github.com/smysle/anitrack-go/pkg/utils"
)

// searchAnime 搜索番剧
func (s *Server) searchAnime(c *fiber.Ctx) error {
	query := c.Query("q")
	page := c.QueryInt("page", 1)

	return c.JSON(s.catalog.Search(c.UserContext(), query, page))
}

// getTrending 获取热门榜
func (s *Server) getTrending(c *fiber.Ctx) error {
	period := catalog.Period(c.Query("period", string(catalog.PeriodWeek)))
	switch period {
	case catalog.PeriodDay, catalog.PeriodWeek, catalog.PeriodMonth, catalog.PeriodAll:
	default:
		return badRequest(c, "无效的时间范围")
	}

	return c.JSON(fiber.Map{
		"period":  period,
		"records": s.catalog.Trending(c.UserContext(), period),
	})
}

// getAnime 获取番剧详情
func (s *Server) getAnime(c *fiber.Ctx) error {
	anime := s.catalog.Details(c.UserContext(), c.Params("id"))
	if anime == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "番剧不存在或暂时无法获取",
		})
	}
	return c.JSON(anime)
}

// getRandom 随机番剧
func (s *Server) getRandom(c *fiber.Ctx) error {
	return c.JSON(s.catalog.Random(c.UserContext()))
}

// listProgress 获取全部追番记录
func (s *Server) listProgress(c *fiber.Ctx) error {
	status, ok := parseStatus(c)
	if !ok {
		return badRequest(c, "无效的状态")
	}
	if status == "" {
		return c.JSON(s.progress.GetAll())
	}
	return c.JSON(s.progress.GetByStatus(status))
}

// getProgress 获取单条追番记录
func (s *Server) getProgress(c *fiber.Ctx) error {
	entry, ok := s.progress.Get(c.Params("id"))
	if !ok {
		return fail(c, progress.ErrNotFound)
	}
	return c.JSON(entry)
}

// putProgress 添加或覆盖追番记录
func (s *Server) putProgress(c *fiber.Ctx) error {
	id := c.Params("id")

	var entry models.ProgressEntry
	if err := c.BodyParser(&entry); err != nil {
		pkglogger.Warn().Err(err).Msg("解析追番记录失败")
		return badRequest(c, "无效的请求体")
	}

	if err := s.progress.Add(id, entry); err != nil {
		return fail(c, err)
	}
	return s.respondEntry(c, id)
}

// patchProgress 部分更新追番记录
func (s *Server) patchProgress(c *fiber.Ctx) error {
	id := c.Params("id")

	var patch models.ProgressPatch
	if err := c.BodyParser(&patch); err != nil {
		pkglogger.Warn().Err(err).Msg("解析更新内容失败")
		return badRequest(c, "无效的请求体")
	}

	if err := s.progress.Update(id, patch); err != nil {
		return fail(c, err)
	}
	return s.respondEntry(c, id)
}

// deleteProgress 删除追番记录
func (s *Server) deleteProgress(c *fiber.Ctx) error {
	if err := s.progress.Remove(c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// EpisodeRequest 快速更新集数，Episode 为空时加一集
type EpisodeRequest struct {
	Episode *int `json:"episode"`
}

// updateEpisode 快速更新集数
func (s *Server) updateEpisode(c *fiber.Ctx) error {
	id := c.Params("id")

	var req EpisodeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "无效的请求体")
		}
	}

	var err error
	if req.Episode == nil {
		err = s.progress.IncrementEpisode(id)
	} else {
		err = s.progress.UpdateEpisode(id, *req.Episode)
	}
	if err != nil {
		return fail(c, err)
	}
	return s.respondEntry(c, id)
}

func (s *Server) respondEntry(c *fiber.Ctx, id string) error {
	id = strings.TrimSpace(id)
	entry, ok := s.progress.Get(id)
	if !ok {
		// 返回前被并发删除
		return fail(c, progress.ErrNotFound)
	}
	return c.JSON(fiber.Map{
		"id":    id,
		"entry": entry,
	})
}

// listLibrary 追番列表（番剧信息与进度合并）
func (s *Server) listLibrary(c *fiber.Ctx) error {
	status, ok := parseStatus(c)
	if !ok {
		return badRequest(c, "无效的状态")
	}
	return c.JSON(s.library.Items(c.UserContext(), status))
}

// LibraryAddRequest 从番剧目录添加追番
type LibraryAddRequest struct {
	Status models.Status `json:"status"`
}

// addToLibrary 从番剧目录添加追番
func (s *Server) addToLibrary(c *fiber.Ctx) error {
	var req LibraryAddRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "无效的请求体")
		}
	}

	item, err := s.library.AddFromCatalog(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// StatsResponse 统计响应
type StatsResponse struct {
	progress.Stats
	WatchTime    string `json:"watchTime"`
	AverageLabel string `json:"averageLabel"`
}

// getStats 获取统计
func (s *Server) getStats(c *fiber.Ctx) error {
	stats := s.progress.ComputeStats()
	return c.JSON(StatsResponse{
		Stats:        stats,
		WatchTime:    utils.FormatHours(stats.TotalHours),
		AverageLabel: averageLabel(stats),
	})
}

// getStatsCard 统计卡片图片
func (s *Server) getStatsCard(c *fiber.Ctx) error {
	stats := s.progress.ComputeStats()

	statuses := make([]imggen.StatusCount, 0, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		statuses = append(statuses, imggen.StatusCount{
			Label: utils.StatusLabel(string(st)),
			Count: stats.CountByStatus(st),
		})
	}

	data, err := imggen.GenerateStatsCard(imggen.StatsCard{
		Title:         c.Query("title", "Anime Stats"),
		Total:         stats.Total,
		Statuses:      statuses,
		TotalEpisodes: stats.TotalEpisodes,
		WatchTime:     utils.FormatHours(stats.TotalHours),
		AverageScore:  averageLabel(stats),
		GeneratedAt:   time.Now(),
	})
	if err != nil {
		return fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

func averageLabel(stats progress.Stats) string {
	if stats.AverageScore == 0 {
		return utils.FormatScore(nil)
	}
	return utils.FormatScore(&stats.AverageScore)
}

// listBackups 列出备份
func (s *Server) listBackups(c *fiber.Ctx) error {
	backups, err := s.backup.ListBackups()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(backups)
}

// createBackup 立即备份
func (s *Server) createBackup(c *fiber.Ctx) error {
	result, err := s.backup.Backup(c.QueryBool("compress", s.cfg.Backup.Compress))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// restoreBackup 从备份恢复
func (s *Server) restoreBackup(c *fiber.Ctx) error {
	path, err := s.backup.BackupFilePath(c.Params("name"))
	if err != nil {
		return fail(c, err)
	}

	n, err := s.backup.Restore(path)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"restored": n,
	})
}
