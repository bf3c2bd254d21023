package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/pkg/logger"
	"github.com/smysle/anitrack-go/pkg/utils"
)

// ErrNotFound 上游返回 404
var ErrNotFound = errors.New("番剧不存在")

// Client 番剧目录 API 客户端
//
// 所有请求先查缓存，未命中时经过限流再访问上游。缓存保存校验通过的原始响应体，
// 每次调用都会重新规范化，内置数据不会写入缓存。
type Client struct {
	baseURL       string
	httpClient    *resty.Client
	cache         *utils.Cache
	perSecond     *rate.Limiter
	perMinute     *rate.Limiter
	searchLimit   int
	trendingLimit int
	pick          func(n int) int
}

// NewClient 创建番剧目录客户端
func NewClient(cfg *config.CatalogConfig, cache *utils.Cache) *Client {
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout())
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(cfg.RetryWait())
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError)
	})
	client.SetHeaders(map[string]string{
		"Accept":     "application/json",
		"User-Agent": "AniTrack/1.0 Go",
	})

	if cache == nil {
		cache = utils.NewCache(utils.DefaultCacheTTL, 0)
	}

	perSecond := cfg.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 3
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:    client,
		cache:         cache,
		perSecond:     rate.NewLimiter(rate.Limit(perSecond), perSecond),
		perMinute:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		searchLimit:   cfg.SearchLimit,
		trendingLimit: cfg.TrendingLimit,
		pick:          rand.IntN,
	}

	// 每次发送（包括重试）前都要经过限流
	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		return c.wait(r.Context())
	})
	return c
}

// Search 按关键词搜索，失败时返回内置数据中的匹配项
func (c *Client) Search(ctx context.Context, query string, page int) SearchResult {
	query = strings.TrimSpace(query)
	if page < 1 {
		page = 1
	}
	if query == "" {
		return SearchResult{
			Records:    []Anime{},
			Pagination: Pagination{CurrentPage: 1, LastVisiblePage: 1},
		}
	}

	params := map[string]string{
		"q":    strings.ToLower(query),
		"page": strconv.Itoa(page),
	}
	if c.searchLimit > 0 {
		params["limit"] = strconv.Itoa(c.searchLimit)
	}

	var payload *listPayload
	err := c.fetch(ctx, "anime", params, func(body []byte) error {
		p, err := decodeList(body)
		payload = p
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Str("query", query).Int("page", page).Msg("番剧搜索失败，使用内置数据")
		return fallbackSearch(query)
	}

	return SearchResult{
		Records:    payload.Records,
		Pagination: payload.Pagination.toPagination(page, len(payload.Records)),
	}
}

// Trending 获取热门榜，period 仅用于选择上游榜单
func (c *Client) Trending(ctx context.Context, period Period) []Anime {
	params := map[string]string{"filter": period.filter()}
	if c.trendingLimit > 0 {
		params["limit"] = strconv.Itoa(c.trendingLimit)
	}

	var payload *listPayload
	err := c.fetch(ctx, "top/anime", params, func(body []byte) error {
		p, err := decodeList(body)
		payload = p
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Str("period", string(period)).Msg("获取热门榜失败，使用内置数据")
		return fallbackTrending()
	}

	records := payload.Records
	if c.trendingLimit > 0 && len(records) > c.trendingLimit {
		records = records[:c.trendingLimit]
	}
	return records
}

// Details 获取番剧详情，失败或不存在时返回 nil
//
// 调用方据此使用本地保存的标题与封面作为兜底。
func (c *Client) Details(ctx context.Context, id string) *Anime {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	var anime Anime
	err := c.fetch(ctx, "anime/"+url.PathEscape(id), nil, func(body []byte) error {
		a, err := decodeSingle(body)
		anime = a
		return err
	})
	if errors.Is(err, ErrNotFound) {
		logger.Info().Str("id", id).Msg("番剧详情不存在")
		return nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("id", id).Msg("获取番剧详情失败")
		return nil
	}
	return &anime
}

// Random 随机获取一部番剧，失败时从内置数据中随机选择
func (c *Client) Random(ctx context.Context) Anime {
	var anime Anime
	err := c.fetch(ctx, "random/anime", nil, func(body []byte) error {
		a, err := decodeSingle(body)
		anime = a
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Msg("随机番剧获取失败，使用内置数据")
		return fallbackRandom(c.pick)
	}
	return anime
}

// fetch 查缓存或请求上游，decode 成功后才写入缓存
func (c *Client) fetch(ctx context.Context, endpoint string, params map[string]string, decode func([]byte) error) error {
	key := utils.CacheKey(endpoint, params)
	if cached, ok := c.cache.Get(key); ok {
		if body, ok := cached.([]byte); ok && decode(body) == nil {
			logger.Debug().Str("key", key).Msg("命中缓存")
			return nil
		}
	}

	body, err := c.request(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := decode(body); err != nil {
		return err
	}

	c.cache.Put(key, body)
	return nil
}

// wait 等待两个限流器放行
func (c *Client) wait(ctx context.Context) error {
	if err := c.perSecond.Wait(ctx); err != nil {
		return fmt.Errorf("限流等待失败: %w", err)
	}
	if err := c.perMinute.Wait(ctx); err != nil {
		return fmt.Errorf("限流等待失败: %w", err)
	}
	return nil
}

// request 发送 GET 请求，限流在 OnBeforeRequest 中完成
func (c *Client) request(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	reqURL := c.baseURL + "/" + endpoint
	req := c.httpClient.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), utils.Truncate(string(resp.Body()), 200))
	}

	logger.Debug().Str("url", reqURL).Int("status", resp.StatusCode()).Msg("番剧目录请求完成")
	return resp.Body(), nil
}
