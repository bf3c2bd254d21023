package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errMissingData = errors.New("响应缺少 data 字段")

// rawAnime 上游返回的番剧结构，所有字段均视为可选
type rawAnime struct {
	MalID         flexID     `json:"mal_id"`
	ID            flexID     `json:"id"`
	Title         string     `json:"title"`
	TitleEnglish  string     `json:"title_english"`
	TitleJapanese string     `json:"title_japanese"`
	Images        *rawImages `json:"images"`
	Image         string     `json:"image"`
	ImageURL      string     `json:"image_url"`
	Score         flexFloat  `json:"score"`
	Episodes      flexInt    `json:"episodes"`
	Synopsis      string     `json:"synopsis"`
	Genres        []rawNamed `json:"genres"`
	Year          flexInt    `json:"year"`
	Studios       []rawNamed `json:"studios"`
	Rating        string     `json:"rating"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Aired         rawAired   `json:"aired"`
	Popularity    flexInt    `json:"popularity"`
	Rank          flexInt    `json:"rank"`
	Members       flexInt    `json:"members"`
	Favorites     flexInt    `json:"favorites"`
}

type rawImages struct {
	JPG  rawImageSet `json:"jpg"`
	WebP rawImageSet `json:"webp"`
}

type rawImageSet struct {
	ImageURL      string `json:"image_url"`
	LargeImageURL string `json:"large_image_url"`
}

type rawPagination struct {
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	CurrentPage     int  `json:"current_page"`
	Items           struct {
		Count   int `json:"count"`
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"items"`
}

// flexID 兼容数字与字符串形式的 ID
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexFloat 兼容数字与数字字符串，其他类型视为缺失
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	f.Value = nil
	if v, ok := parseNumber(data); ok {
		f.Value = &v
	}
	return nil
}

// flexInt 兼容整数与整数字符串，其他类型视为缺失
type flexInt struct {
	Value *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	f.Value = nil
	v, ok := parseNumber(data)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return nil
	}
	n := int(v)
	f.Value = &n
	return nil
}

func parseNumber(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, false
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, false
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// rawNamed 兼容 {"name": "..."} 与纯字符串
type rawNamed string

func (r *rawNamed) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = rawNamed(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = rawNamed(obj.Name)
	return nil
}

// rawAired 兼容 {"string": "..."} 与纯字符串
type rawAired string

func (r *rawAired) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = rawAired(s)
		return nil
	}
	var obj struct {
		String string `json:"string"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = rawAired(obj.String)
	return nil
}

// normalizeAnime 转换为规范结构，缺少 ID 或标题时返回 false
func normalizeAnime(raw rawAnime) (Anime, bool) {
	id := string(raw.MalID)
	if id == "" {
		id = string(raw.ID)
	}
	if id == "" {
		return Anime{}, false
	}

	title := firstNonEmpty(raw.Title, raw.TitleEnglish, raw.TitleJapanese)
	if title == "" {
		return Anime{}, false
	}

	a := Anime{
		ID:            id,
		Title:         title,
		TitleEnglish:  strings.TrimSpace(raw.TitleEnglish),
		TitleJapanese: strings.TrimSpace(raw.TitleJapanese),
		Image:         pickImage(raw),
		Score:         raw.Score.Value,
		Episodes:      positiveOrNil(raw.Episodes.Value),
		Synopsis:      strings.TrimSpace(raw.Synopsis),
		Genres:        names(raw.Genres),
		Year:          positiveOrNil(raw.Year.Value),
		Studios:       names(raw.Studios),
		Rating:        raw.Rating,
		Type:          raw.Type,
		Status:        raw.Status,
		Aired:         string(raw.Aired),
		Popularity:    raw.Popularity.Value,
		Rank:          raw.Rank.Value,
		Members:       raw.Members.Value,
		Favorites:     raw.Favorites.Value,
	}
	if a.Score != nil && (*a.Score < 0 || *a.Score > 10) {
		a.Score = nil
	}
	return a, true
}

func pickImage(raw rawAnime) string {
	if raw.Images != nil {
		if u := firstNonEmpty(raw.Images.JPG.LargeImageURL, raw.Images.JPG.ImageURL, raw.Images.WebP.LargeImageURL, raw.Images.WebP.ImageURL); u != "" {
			return u
		}
	}
	return firstNonEmpty(raw.Image, raw.ImageURL)
}

func names(items []rawNamed) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(string(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func positiveOrNil(p *int) *int {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// listPayload 列表接口响应
type listPayload struct {
	Records    []Anime
	Pagination *rawPagination
}

// decodeList 解析列表响应，data 必须是数组，单条结构异常只跳过该条
func decodeList(body []byte) (*listPayload, error) {
	var envelope struct {
		Data       *[]json.RawMessage `json:"data"`
		Pagination *rawPagination     `json:"pagination"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if envelope.Data == nil {
		return nil, errMissingData
	}

	records := make([]Anime, 0, len(*envelope.Data))
	for _, item := range *envelope.Data {
		var raw rawAnime
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		if a, ok := normalizeAnime(raw); ok {
			records = append(records, a)
		}
	}
	return &listPayload{Records: records, Pagination: envelope.Pagination}, nil
}

// decodeSingle 解析单条响应
func decodeSingle(body []byte) (Anime, error) {
	var envelope struct {
		Data *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Anime{}, fmt.Errorf("解析响应失败: %w", err)
	}
	if envelope.Data == nil {
		return Anime{}, errMissingData
	}
	var raw rawAnime
	if err := json.Unmarshal(*envelope.Data, &raw); err != nil {
		return Anime{}, fmt.Errorf("解析番剧数据失败: %w", err)
	}
	a, ok := normalizeAnime(raw)
	if !ok {
		return Anime{}, errors.New("番剧数据缺少 id 或标题")
	}
	return a, nil
}

// toPagination 上游缺少分页时按单页处理
func (p *rawPagination) toPagination(page, count int) Pagination {
	if p == nil {
		return Pagination{CurrentPage: page, LastVisiblePage: page, Total: count, PerPage: count}
	}
	out := Pagination{
		CurrentPage:     p.CurrentPage,
		LastVisiblePage: p.LastVisiblePage,
		HasNextPage:     p.HasNextPage,
		Total:           p.Items.Total,
		PerPage:         p.Items.PerPage,
	}
	if out.CurrentPage == 0 {
		out.CurrentPage = page
	}
	if out.LastVisiblePage < out.CurrentPage {
		out.LastVisiblePage = out.CurrentPage
	}
	return out
}
