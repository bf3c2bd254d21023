// Package progress 追番进度管理
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smysle/anitrack-go/internal/catalog"
	"github.com/smysle/anitrack-go/internal/database"
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/pkg/logger"
)

var (
	ErrNotFound     = errors.New("追番记录不存在")
	ErrInvalidEntry = errors.New("追番记录无效")
)

// DefaultEpisodeLength 默认单集时长（分钟）
const DefaultEpisodeLength = 24

// Listener 变更通知回调，参数为变更后的完整记录副本
type Listener func(models.Collection)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store 追番记录的唯一数据源
//
// 每次修改先把完整记录写入存储，写入成功后才替换内存状态并通知监听者，
// 写入失败时内存状态保持不变。监听者在锁释放后同步调用，通知顺序与修改顺序一致，
// 回调内可以读取记录但不能再修改。
type Store struct {
	mu            sync.Mutex
	notifyMu      sync.Mutex
	backend       database.Store
	entries       models.Collection
	now           func() time.Time
	episodeLength int

	listenersMu sync.Mutex
	listeners   []listenerEntry
	nextID      uint64
}

// Option 创建选项
type Option func(*Store)

// WithClock 替换时钟（测试使用）
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithEpisodeLength 设置单集时长（分钟）
func WithEpisodeLength(minutes int) Option {
	return func(s *Store) {
		if minutes > 0 {
			s.episodeLength = minutes
		}
	}
}

// NewStore 创建追番记录存储，调用方需要再调用 Load
func NewStore(backend database.Store, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		entries:       models.Collection{},
		now:           time.Now,
		episodeLength: DefaultEpisodeLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load 读取持久化的追番记录
//
// 键不存在或数据损坏时重置为空记录并返回 nil；存储读取失败时同样重置为空，
// 并返回错误由调用方记录。
func (s *Store) Load() error {
	data, err := s.backend.Get(models.KeyProgress)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = models.Collection{}
	if errors.Is(err, models.ErrKeyNotFound) {
		logger.Debug().Msg("暂无追番记录")
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取追番记录失败: %w", err)
	}

	var loaded models.Collection
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn().Err(err).Int("bytes", len(data)).Msg("追番记录已损坏，重置为空")
		return nil
	}

	for id, entry := range loaded {
		if err := validate(id, &entry); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("跳过无效的追番记录")
			continue
		}
		settle(&entry, true, false)
		s.entries[id] = entry
	}

	logger.Info().Int("count", len(s.entries)).Msg("追番记录加载完成")
	return nil
}

// Add 添加追番记录，已存在时直接覆盖
func (s *Store) Add(id string, entry models.ProgressEntry) error {
	// id 会作为 map 键长期保存，调用方的字符串可能引用复用的请求缓冲区
	id = strings.Clone(strings.TrimSpace(id))
	entry = entry.Clone()
	if entry.Status == "" {
		entry.Status = models.StatusPlanToWatch
		if entry.CurrentEpisode > 0 {
			entry.Status = models.StatusWatching
		}
	}
	if err := validate(id, &entry); err != nil {
		return err
	}

	err := s.mutate(func(next models.Collection) error {
		var prev int64
		if old, ok := next[id]; ok {
			prev = old.UpdatedAt
		}
		settle(&entry, true, false)
		entry.UpdatedAt = s.stamp(prev)
		entry.AddedAt = entry.UpdatedAt
		next[id] = entry
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Str("id", id).Str("title", entry.Title).Str("status", string(entry.Status)).Msg("添加追番")
	return nil
}

// Update 合并部分字段，记录不存在时返回 ErrNotFound
func (s *Store) Update(id string, patch models.ProgressPatch) error {
	return s.mutate(func(next models.Collection) error {
		entry, ok := next[id]
		if !ok {
			return ErrNotFound
		}

		if patch.Title != nil {
			entry.Title = *patch.Title
		}
		if patch.Image != nil {
			entry.Image = strings.TrimSpace(*patch.Image)
		}
		if patch.CurrentEpisode != nil {
			entry.CurrentEpisode = *patch.CurrentEpisode
		}
		if patch.TotalEpisodes.Set {
			entry.TotalEpisodes = cloneInt(patch.TotalEpisodes.Value)
		}
		if patch.Status != nil {
			entry.Status = *patch.Status
		}
		if patch.Rating.Set {
			entry.Rating = cloneInt(patch.Rating.Value)
		}

		if err := validate(id, &entry); err != nil {
			return err
		}
		settle(&entry, patch.Status != nil, patch.CurrentEpisode != nil)
		entry.UpdatedAt = s.stamp(entry.UpdatedAt)
		next[id] = entry
		return nil
	})
}

// UpdateEpisode 快速更新当前集数
//
// 达到总集数时自动标记为看完，计划观看的番剧开始观看后转为在看。
func (s *Store) UpdateEpisode(id string, episode int) error {
	if episode < 0 {
		return fmt.Errorf("%w: 集数不能为负数", ErrInvalidEntry)
	}
	return s.setEpisode(id, func(int) int { return episode })
}

// IncrementEpisode 当前集数加一
func (s *Store) IncrementEpisode(id string) error {
	return s.setEpisode(id, func(current int) int { return current + 1 })
}

func (s *Store) setEpisode(id string, next func(current int) int) error {
	return s.mutate(func(c models.Collection) error {
		entry, ok := c[id]
		if !ok {
			return ErrNotFound
		}
		entry.CurrentEpisode = next(entry.CurrentEpisode)
		settle(&entry, false, true)
		entry.UpdatedAt = s.stamp(entry.UpdatedAt)
		c[id] = entry

		logger.Debug().Str("id", id).Int("episode", entry.CurrentEpisode).Str("status", string(entry.Status)).Msg("更新集数")
		return nil
	})
}

// Remove 删除追番记录，记录不存在时返回 ErrNotFound
func (s *Store) Remove(id string) error {
	err := s.mutate(func(next models.Collection) error {
		if _, ok := next[id]; !ok {
			return ErrNotFound
		}
		delete(next, id)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Str("id", id).Msg("删除追番")
	return nil
}

// Replace 整体替换全部记录（恢复备份使用），只通知一次
func (s *Store) Replace(c models.Collection) error {
	incoming := make(models.Collection, len(c))
	for id, entry := range c {
		id = strings.Clone(strings.TrimSpace(id))
		entry = entry.Clone()
		if err := validate(id, &entry); err != nil {
			return fmt.Errorf("记录 %s: %w", id, err)
		}
		settle(&entry, true, false)
		incoming[id] = entry
	}

	return s.mutate(func(next models.Collection) error {
		for id := range next {
			delete(next, id)
		}
		ts := s.stamp(0)
		for id, entry := range incoming {
			if entry.AddedAt == 0 {
				entry.AddedAt = ts
			}
			if entry.UpdatedAt < entry.AddedAt {
				entry.UpdatedAt = entry.AddedAt
			}
			next[id] = entry
		}
		return nil
	})
}

// Get 获取单条记录
func (s *Store) Get(id string) (models.ProgressEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return models.ProgressEntry{}, false
	}
	return entry.Clone(), true
}

// GetAll 获取全部记录的副本
func (s *Store) GetAll() models.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entries.Clone()
}

// GetByStatus 按状态筛选
func (s *Store) GetByStatus(status models.Status) models.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := models.Collection{}
	for id, entry := range s.entries {
		if entry.Status == status {
			out[id] = entry.Clone()
		}
	}
	return out
}

// IDs 按最近更新时间倒序返回全部 ID
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.entries[ids[i]], s.entries[ids[j]]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ComputeStats 统计当前记录
func (s *Store) ComputeStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ComputeStats(s.entries, s.episodeLength)
}

// EpisodeLength 单集时长（分钟）
func (s *Store) EpisodeLength() int {
	return s.episodeLength
}

// DisplayRecord 详情获取失败时，根据本地记录生成占位的番剧信息
func (s *Store) DisplayRecord(id string) (catalog.Anime, bool) {
	entry, ok := s.Get(id)
	if !ok {
		return catalog.Anime{}, false
	}
	return catalog.Anime{
		ID:       id,
		Title:    entry.Title,
		Image:    entry.Image,
		Episodes: entry.TotalEpisodes,
		Genres:   []string{},
		Studios:  []string{},
	}, true
}

// Subscribe 注册变更监听，返回的取消函数可重复调用，也可在回调内调用
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	s.listenersMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// mutate 在副本上执行修改，整体写入成功后替换内存状态并通知监听者
func (s *Store) mutate(fn func(next models.Collection) error) error {
	s.mu.Lock()

	next := s.entries.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("序列化追番记录失败: %w", err)
	}
	if err := s.backend.Put(models.KeyProgress, data); err != nil {
		s.mu.Unlock()
		logger.Error().Err(err).Msg("保存追番记录失败")
		return fmt.Errorf("保存追番记录失败: %w", err)
	}

	s.entries = next
	snapshot := next.Clone()

	// 先拿到通知锁再释放数据锁，保证按修改顺序通知
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.notify(snapshot)
	return nil
}

func (s *Store) notify(c models.Collection) {
	s.listenersMu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l.fn(c.Clone())
	}
}

// stamp 毫秒时间戳，保证严格大于 prev
func (s *Store) stamp(prev int64) int64 {
	ts := s.now().UnixMilli()
	if ts <= prev {
		ts = prev + 1
	}
	return ts
}

// validate 校验记录字段
func validate(id string, e *models.ProgressEntry) error {
	e.Title = strings.TrimSpace(e.Title)
	switch {
	case id == "":
		return fmt.Errorf("%w: 缺少番剧 ID", ErrInvalidEntry)
	case e.Title == "":
		return fmt.Errorf("%w: 缺少标题", ErrInvalidEntry)
	case !e.Status.Valid():
		return fmt.Errorf("%w: 未知状态 %q", ErrInvalidEntry, e.Status)
	case e.CurrentEpisode < 0:
		return fmt.Errorf("%w: 集数不能为负数", ErrInvalidEntry)
	case e.TotalEpisodes != nil && *e.TotalEpisodes <= 0:
		return fmt.Errorf("%w: 总集数必须大于 0", ErrInvalidEntry)
	case e.Rating != nil && (*e.Rating < 1 || *e.Rating > 10):
		return fmt.Errorf("%w: 评分必须在 1-10 之间", ErrInvalidEntry)
	}
	return nil
}

// settle 维护集数与状态之间的约束
//
// statusSet 表示本次显式设置了状态，episodeSet 表示本次修改了集数。
func settle(e *models.ProgressEntry, statusSet, episodeSet bool) {
	if episodeSet && !statusSet {
		switch {
		case e.Status == models.StatusPlanToWatch && e.CurrentEpisode > 0:
			e.Status = models.StatusWatching
		case e.Status == models.StatusCompleted && e.HasTotal() && e.CurrentEpisode < *e.TotalEpisodes:
			e.Status = models.StatusWatching
		}
	}

	if !e.HasTotal() {
		return
	}
	total := *e.TotalEpisodes
	if e.CurrentEpisode >= total || (statusSet && e.Status == models.StatusCompleted) {
		e.CurrentEpisode = total
		e.Status = models.StatusCompleted
	}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
