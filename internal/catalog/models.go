// Package catalog 番剧目录 API 客户端
package catalog

// Anime 规范化后的番剧信息，每次请求重新生成，不单独持久化
//
// 只有 ID 与 Title 保证存在，其余字段可能为空。
type Anime struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	TitleEnglish  string   `json:"titleEnglish,omitempty"`
	TitleJapanese string   `json:"titleJapanese,omitempty"`
	Image         string   `json:"image,omitempty"`
	Score         *float64 `json:"score"`
	Episodes      *int     `json:"episodes"`
	Synopsis      string   `json:"synopsis,omitempty"`
	Genres        []string `json:"genres"`
	Year          *int     `json:"year"`
	Studios       []string `json:"studios"`
	Rating        string   `json:"rating,omitempty"`
	Type          string   `json:"type,omitempty"`
	Status        string   `json:"status,omitempty"`
	Aired         string   `json:"aired,omitempty"`
	Popularity    *int     `json:"popularity"`
	Rank          *int     `json:"rank"`
	Members       *int     `json:"members"`
	Favorites     *int     `json:"favorites"`
}

// DisplayTitle 优先显示英文标题
func (a *Anime) DisplayTitle() string {
	if a.TitleEnglish != "" {
		return a.TitleEnglish
	}
	return a.Title
}

// Pagination 分页信息
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	LastVisiblePage int  `json:"lastVisiblePage"`
	HasNextPage     bool `json:"hasNextPage"`
	Total           int  `json:"total"`
	PerPage         int  `json:"perPage"`
}

// SearchResult 搜索结果
type SearchResult struct {
	Records    []Anime    `json:"records"`
	Pagination Pagination `json:"pagination"`
	// FromFallback 请求失败时为 true，结果来自内置数据
	FromFallback bool `json:"fromFallback"`
}

// Period 热门榜时间范围（仅作参考）
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// filter 对应上游 top 接口的 filter 参数
func (p Period) filter() string {
	if p == PeriodAll {
		return "bypopularity"
	}
	return "airing"
}

func cloneAnime(a Anime) Anime {
	a.Genres = append(make([]string, 0, len(a.Genres)), a.Genres...)
	a.Studios = append(make([]string, 0, len(a.Studios)), a.Studios...)
	if a.Score != nil {
		v := *a.Score
		a.Score = &v
	}
	a.Episodes = cloneInt(a.Episodes)
	a.Year = cloneInt(a.Year)
	a.Popularity = cloneInt(a.Popularity)
	a.Rank = cloneInt(a.Rank)
	a.Members = cloneInt(a.Members)
	a.Favorites = cloneInt(a.Favorites)
	return a
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
