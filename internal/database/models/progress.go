// Package models 数据模型 - 追番进度
package models

import (
	"bytes"
	"encoding/json"
)

// Status 追番状态
type Status string

const (
	StatusWatching    Status = "watching"
	StatusCompleted   Status = "completed"
	StatusOnHold      Status = "on_hold"
	StatusDropped     Status = "dropped"
	StatusPlanToWatch Status = "plan_to_watch"
)

// AllStatuses 全部状态（展示顺序）
var AllStatuses = []Status{
	StatusWatching,
	StatusCompleted,
	StatusOnHold,
	StatusDropped,
	StatusPlanToWatch,
}

// Valid 是否为合法状态
func (s Status) Valid() bool {
	switch s {
	case StatusWatching, StatusCompleted, StatusOnHold, StatusDropped, StatusPlanToWatch:
		return true
	default:
		return false
	}
}

// ProgressEntry 单部番剧的追番记录
type ProgressEntry struct {
	Title          string `json:"title"`
	Image          string `json:"image,omitempty"`
	CurrentEpisode int    `json:"currentEpisode"`
	TotalEpisodes  *int   `json:"totalEpisodes"`
	Status         Status `json:"status"`
	Rating         *int   `json:"rating"`
	AddedAt        int64  `json:"addedAt"`   // 毫秒时间戳
	UpdatedAt      int64  `json:"updatedAt"` // 毫秒时间戳
}

// HasTotal 总集数是否已知
func (e *ProgressEntry) HasTotal() bool {
	return e.TotalEpisodes != nil && *e.TotalEpisodes > 0
}

// IsFinished 是否已看到最后一集
func (e *ProgressEntry) IsFinished() bool {
	return e.HasTotal() && e.CurrentEpisode >= *e.TotalEpisodes
}

// Clone 深拷贝
func (e ProgressEntry) Clone() ProgressEntry {
	if e.TotalEpisodes != nil {
		v := *e.TotalEpisodes
		e.TotalEpisodes = &v
	}
	if e.Rating != nil {
		v := *e.Rating
		e.Rating = &v
	}
	return e
}

// Collection 全部追番记录，animeId -> ProgressEntry，作为整体持久化
type Collection map[string]ProgressEntry

// Clone 深拷贝
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for id, entry := range c {
		out[id] = entry.Clone()
	}
	return out
}

// ProgressPatch 部分更新，nil 字段表示不修改
type ProgressPatch struct {
	Title          *string     `json:"title"`
	Image          *string     `json:"image"`
	CurrentEpisode *int        `json:"currentEpisode"`
	TotalEpisodes  NullableInt `json:"totalEpisodes"`
	Status         *Status     `json:"status"`
	Rating         NullableInt `json:"rating"`
}

// NullableInt 可区分"未提供"与"显式置空"的整数字段
type NullableInt struct {
	Set   bool
	Value *int
}

// NewNullableInt 设置为指定值
func NewNullableInt(v int) NullableInt {
	return NullableInt{Set: true, Value: &v}
}

// NullInt 显式置空
func NullInt() NullableInt {
	return NullableInt{Set: true}
}

// UnmarshalJSON 出现该字段即视为已设置，null 表示置空
func (n *NullableInt) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// MarshalJSON 输出值或 null
func (n NullableInt) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}
