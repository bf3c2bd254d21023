package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smysle/anitrack-go/internal/catalog"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/internal/progress"
	"github.com/smysle/anitrack-go/pkg/logger"
	"github.com/smysle/anitrack-go/pkg/utils"
)

var (
	ErrAnimeNotFound  = errors.New("番剧不存在或暂时无法获取")
	ErrAlreadyTracked = errors.New("番剧已在追番列表中")
)

// DetailsSource 番剧详情来源
type DetailsSource interface {
	Details(ctx context.Context, id string) *catalog.Anime
}

// LibraryItem 追番列表中的一项，番剧信息与本地进度合并后的展示数据
type LibraryItem struct {
	ID            string               `json:"id"`
	Anime         catalog.Anime        `json:"anime"`
	Progress      models.ProgressEntry `json:"progress"`
	Percent       int                  `json:"percent"`
	EpisodesLabel string               `json:"episodesLabel"`
	StatusLabel   string               `json:"statusLabel"`
	// Placeholder 详情获取失败，番剧信息来自本地记录
	Placeholder bool `json:"placeholder"`
}

// LibraryService 追番列表服务
type LibraryService struct {
	catalog DetailsSource
	store   *progress.Store
}

// NewLibraryService 创建追番列表服务
func NewLibraryService(source DetailsSource, store *progress.Store) *LibraryService {
	return &LibraryService{
		catalog: source,
		store:   store,
	}
}

// Items 获取追番列表，按最近更新倒序，status 为空时返回全部
func (s *LibraryService) Items(ctx context.Context, status models.Status) []LibraryItem {
	ids := s.store.IDs()
	items := make([]LibraryItem, 0, len(ids))

	for _, id := range ids {
		entry, ok := s.store.Get(id)
		if !ok {
			continue
		}
		if status != "" && entry.Status != status {
			continue
		}
		if item, ok := s.item(ctx, id, entry); ok {
			items = append(items, item)
		}
	}
	return items
}

// Item 获取单个追番项
func (s *LibraryService) Item(ctx context.Context, id string) (*LibraryItem, bool) {
	entry, ok := s.store.Get(id)
	if !ok {
		return nil, false
	}
	item, ok := s.item(ctx, id, entry)
	if !ok {
		return nil, false
	}
	return &item, true
}

func (s *LibraryService) item(ctx context.Context, id string, entry models.ProgressEntry) (LibraryItem, bool) {
	item := LibraryItem{ID: id, Progress: entry}

	if anime := s.catalog.Details(ctx, id); anime != nil {
		item.Anime = *anime
	} else {
		placeholder, ok := s.store.DisplayRecord(id)
		if !ok {
			// 记录在此期间被删除
			return LibraryItem{}, false
		}
		item.Anime = placeholder
		item.Placeholder = true
	}

	total := entry.TotalEpisodes
	if total == nil {
		total = item.Anime.Episodes
	}
	item.Percent = utils.ProgressPercent(entry.CurrentEpisode, total)
	item.EpisodesLabel = utils.FormatEpisodes(entry.CurrentEpisode, total)
	item.StatusLabel = utils.StatusLabel(string(entry.Status))
	return item, true
}

// AddFromCatalog 从番剧目录添加追番，标题、封面与总集数取自番剧详情
func (s *LibraryService) AddFromCatalog(ctx context.Context, id string, status models.Status) (*LibraryItem, error) {
	id = strings.TrimSpace(id)
	if _, ok := s.store.Get(id); ok {
		return nil, ErrAlreadyTracked
	}

	anime := s.catalog.Details(ctx, id)
	if anime == nil {
		return nil, ErrAnimeNotFound
	}

	if status == "" {
		status = models.StatusPlanToWatch
	}
	entry := models.ProgressEntry{
		Title:         anime.Title,
		Image:         anime.Image,
		TotalEpisodes: anime.Episodes,
		Status:        status,
	}
	if err := s.store.Add(id, entry); err != nil {
		return nil, err
	}

	saved, _ := s.store.Get(id)
	logger.Info().Str("id", id).Str("title", anime.Title).Msg("从番剧目录添加追番")

	item := LibraryItem{ID: id, Anime: *anime, Progress: saved}
	item.Percent = utils.ProgressPercent(saved.CurrentEpisode, saved.TotalEpisodes)
	item.EpisodesLabel = utils.FormatEpisodes(saved.CurrentEpisode, saved.TotalEpisodes)
	item.StatusLabel = utils.StatusLabel(string(saved.Status))
	return &item, nil
}
