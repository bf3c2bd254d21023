package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/smysle/anitrack-go/internal/config"
	"github.com/smysle/anitrack-go/pkg/utils"
)

const searchBody = `{
  "pagination": {"last_visible_page": 3, "has_next_page": true, "current_page": 1,
                 "items": {"count": 2, "total": 42, "per_page": 2}},
  "data": [
    {"mal_id": 40748, "title": "Jujutsu Kaisen", "title_english": "Jujutsu Kaisen", "title_japanese": "呪術廻戦",
     "images": {"jpg": {"image_url": "https://img/s.jpg", "large_image_url": "https://img/l.jpg"}},
     "score": 8.6, "episodes": 24, "synopsis": "cursed", "genres": [{"mal_id": 1, "name": "Action"}],
     "year": 2020, "studios": [{"name": "MAPPA"}], "rating": "R - 17+", "type": "TV",
     "aired": {"string": "Oct 3, 2020 to Mar 27, 2021"}, "popularity": 20, "rank": 90,
     "members": 3000000, "favorites": 50000},
    {"mal_id": 51009, "title": "Jujutsu Kaisen 2nd Season", "score": null, "episodes": null, "year": null}
  ]
}`

const detailBody = `{"data": {"mal_id": 52991, "title": "Sousou no Frieren", "title_english": "Frieren: Beyond Journey's End",
  "episodes": 28, "images": {"jpg": {"image_url": "https://img/f.jpg"}}}}`

type testServer struct {
	hits atomic.Int32
	srv  *httptest.Server
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func newTestClient(baseURL string) (*Client, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)}
	cache := utils.NewCache(5*time.Minute, time.Hour)
	cache.SetClock(clock.Now)

	c := NewClient(&config.CatalogConfig{
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
		TrendingLimit:  10,
		SearchLimit:    2,
	}, cache)
	c.perSecond = rate.NewLimiter(rate.Inf, 1)
	c.perMinute = rate.NewLimiter(rate.Inf, 1)
	return c, clock
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestClient_Search(t *testing.T) {
	var gotQuery, gotPage, gotPath string
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotPage = r.URL.Query().Get("page")
		jsonHandler(searchBody)(w, r)
	})
	c, _ := newTestClient(ts.srv.URL)

	result := c.Search(context.Background(), "  Jujutsu ", 1)

	if gotPath != "/anime" || gotQuery != "jujutsu" || gotPage != "1" {
		t.Errorf("请求 = %s q=%s page=%s", gotPath, gotQuery, gotPage)
	}
	if result.FromFallback {
		t.Error("FromFallback 应该为 false")
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}

	first := result.Records[0]
	if first.ID != "40748" || first.Title != "Jujutsu Kaisen" || first.TitleJapanese != "呪術廻戦" {
		t.Errorf("first = %+v", first)
	}
	if first.Image != "https://img/l.jpg" {
		t.Errorf("Image = %q, want large image", first.Image)
	}
	if first.Episodes == nil || *first.Episodes != 24 {
		t.Errorf("Episodes = %v, want 24", first.Episodes)
	}
	if first.Aired != "Oct 3, 2020 to Mar 27, 2021" {
		t.Errorf("Aired = %q", first.Aired)
	}
	if len(first.Genres) != 1 || first.Genres[0] != "Action" || len(first.Studios) != 1 || first.Studios[0] != "MAPPA" {
		t.Errorf("Genres = %v, Studios = %v", first.Genres, first.Studios)
	}

	second := result.Records[1]
	if second.Score != nil || second.Episodes != nil || second.Year != nil {
		t.Errorf("缺失字段应为 nil: %+v", second)
	}
	if second.Genres == nil {
		t.Error("缺失的 genres 应为空列表而不是 nil")
	}

	p := result.Pagination
	if p.CurrentPage != 1 || p.LastVisiblePage != 3 || !p.HasNextPage || p.Total != 42 {
		t.Errorf("Pagination = %+v", p)
	}
}

func TestClient_SearchCacheLaw(t *testing.T) {
	ts := newTestServer(t, jsonHandler(searchBody))
	c, clock := newTestClient(ts.srv.URL)
	ctx := context.Background()

	c.Search(ctx, "jujutsu", 1)
	c.Search(ctx, "jujutsu", 1)
	if got := ts.hits.Load(); got != 1 {
		t.Fatalf("TTL 内两次相同搜索请求次数 = %d, want 1", got)
	}

	clock.t = clock.t.Add(5 * time.Minute)
	c.Search(ctx, "jujutsu", 1)
	if got := ts.hits.Load(); got != 2 {
		t.Errorf("TTL 过期后请求次数 = %d, want 2", got)
	}
}

func TestClient_SearchCacheKeySemantic(t *testing.T) {
	ts := newTestServer(t, jsonHandler(searchBody))
	c, _ := newTestClient(ts.srv.URL)
	ctx := context.Background()

	c.Search(ctx, "Jujutsu", 0)
	c.Search(ctx, " jujutsu ", 1)
	if got := ts.hits.Load(); got != 1 {
		t.Errorf("语义相同的搜索请求次数 = %d, want 1", got)
	}

	c.Search(ctx, "jujutsu", 2)
	if got := ts.hits.Load(); got != 2 {
		t.Errorf("不同页码应重新请求，请求次数 = %d, want 2", got)
	}
}

func TestClient_SearchCachedRecordsAreFresh(t *testing.T) {
	ts := newTestServer(t, jsonHandler(searchBody))
	c, _ := newTestClient(ts.srv.URL)
	ctx := context.Background()

	first := c.Search(ctx, "jujutsu", 1)
	first.Records[0].Title = "mutated"
	first.Records[0].Genres[0] = "mutated"

	second := c.Search(ctx, "jujutsu", 1)
	if second.Records[0].Title != "Jujutsu Kaisen" || second.Records[0].Genres[0] != "Action" {
		t.Errorf("缓存命中应重新生成记录: %+v", second.Records[0])
	}
}

func TestClient_SearchFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"HTTP 500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"非法 JSON", jsonHandler(`{"data": [`)},
		{"缺少 data", jsonHandler(`{"status": 200}`)},
		{"data 不是数组", jsonHandler(`{"data": {"mal_id": 1}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.handler)
			c, _ := newTestClient(ts.srv.URL)

			result := c.Search(context.Background(), "Jujutsu", 1)
			assertJujutsuFallback(t, result)

			c.Search(context.Background(), "Jujutsu", 1)
			if got := ts.hits.Load(); got != 2 {
				t.Errorf("失败响应不应写入缓存，请求次数 = %d, want 2", got)
			}
		})
	}
}

func TestClient_SearchFallbackNetworkDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(url)
	assertJujutsuFallback(t, c.Search(context.Background(), "jujutsu", 1))

	none := c.Search(context.Background(), "no such title zzz", 1)
	if len(none.Records) != 0 || !none.FromFallback {
		t.Errorf("无匹配时应返回空的内置结果: %+v", none)
	}
}

func assertJujutsuFallback(t *testing.T, result SearchResult) {
	t.Helper()
	if !result.FromFallback {
		t.Error("FromFallback 应该为 true")
	}
	if len(result.Records) == 0 {
		t.Fatal("内置搜索结果不应为空")
	}
	for _, r := range result.Records {
		if !strings.Contains(strings.ToLower(r.Title), "jujutsu") && !strings.Contains(strings.ToLower(r.TitleEnglish), "jujutsu") {
			t.Errorf("结果 %q 不匹配 jujutsu", r.Title)
		}
	}
	if result.Pagination.CurrentPage != 1 || result.Pagination.HasNextPage {
		t.Errorf("Pagination = %+v", result.Pagination)
	}
}

func TestClient_SearchEmptyQuery(t *testing.T) {
	ts := newTestServer(t, jsonHandler(searchBody))
	c, _ := newTestClient(ts.srv.URL)

	result := c.Search(context.Background(), "   ", 1)
	if len(result.Records) != 0 || result.Records == nil {
		t.Errorf("空关键词应返回空列表: %+v", result)
	}
	if ts.hits.Load() != 0 {
		t.Error("空关键词不应请求上游")
	}
}

func TestClient_Trending(t *testing.T) {
	var gotFilter, gotLimit string
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top/anime" {
			t.Errorf("path = %s, want /top/anime", r.URL.Path)
		}
		gotFilter = r.URL.Query().Get("filter")
		gotLimit = r.URL.Query().Get("limit")
		jsonHandler(searchBody)(w, r)
	})
	c, _ := newTestClient(ts.srv.URL)

	records := c.Trending(context.Background(), PeriodWeek)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if gotFilter != "airing" || gotLimit != "10" {
		t.Errorf("filter = %q limit = %q", gotFilter, gotLimit)
	}

	c.Trending(context.Background(), PeriodAll)
	if gotFilter != "bypopularity" {
		t.Errorf("PeriodAll filter = %q, want bypopularity", gotFilter)
	}

	c.Trending(context.Background(), PeriodDay)
	if got := ts.hits.Load(); got != 2 {
		t.Errorf("day 与 week 使用相同榜单应命中缓存，请求次数 = %d, want 2", got)
	}
}

func TestClient_TrendingFallback(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, _ := newTestClient(ts.srv.URL)

	day := c.Trending(context.Background(), PeriodDay)
	all := c.Trending(context.Background(), PeriodAll)
	if len(day) == 0 {
		t.Fatal("内置热门榜不应为空")
	}
	if len(day) != len(all) || day[0].ID != all[0].ID {
		t.Error("内置热门榜不随时间范围变化")
	}
}

func TestClient_Details(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/52991":
			jsonHandler(detailBody)(w, r)
		case "/anime/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c, _ := newTestClient(ts.srv.URL)
	ctx := context.Background()

	a := c.Details(ctx, "52991")
	if a == nil {
		t.Fatal("Details() = nil, want record")
	}
	if a.Title != "Sousou no Frieren" || a.DisplayTitle() != "Frieren: Beyond Journey's End" {
		t.Errorf("Details() = %+v", a)
	}

	if got := c.Details(ctx, "1"); got != nil {
		t.Errorf("不存在的番剧 Details() = %+v, want nil", got)
	}
	if got := c.Details(ctx, "500"); got != nil {
		t.Errorf("请求失败 Details() = %+v, want nil", got)
	}
	if got := c.Details(ctx, ""); got != nil {
		t.Errorf("空 ID Details() = %+v, want nil", got)
	}

	before := ts.hits.Load()
	c.Details(ctx, "52991")
	if ts.hits.Load() != before {
		t.Error("重复获取详情应命中缓存")
	}
}

func TestClient_Random(t *testing.T) {
	ts := newTestServer(t, jsonHandler(detailBody))
	c, _ := newTestClient(ts.srv.URL)

	a := c.Random(context.Background())
	if a.ID != "52991" {
		t.Errorf("Random() = %+v", a)
	}
}

func TestClient_RandomFallback(t *testing.T) {
	ts := newTestServer(t, jsonHandler(`{"data": {"title": "no id"}}`))
	c, _ := newTestClient(ts.srv.URL)
	c.pick = func(n int) int { return n - 1 }

	a := c.Random(context.Background())
	want := fallbackAnime[len(fallbackAnime)-1]
	if a.ID != want.ID {
		t.Errorf("Random() = %s, want %s", a.ID, want.ID)
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	ts := newTestServer(t, jsonHandler(searchBody))
	c, _ := newTestClient(ts.srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.Search(ctx, "jujutsu", 1)
	if !result.FromFallback {
		t.Error("上下文取消后应返回内置数据")
	}
}

func TestClient_RetryWaitsOnLimiter(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if ts.hits.Load() == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		jsonHandler(searchBody)(w, r)
	})

	c, _ := newTestClient(ts.srv.URL)
	c.httpClient.SetRetryCount(1).
		SetRetryWaitTime(time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Millisecond)
	// 几乎不回填，剩余令牌数即为实际发送次数
	c.perSecond = rate.NewLimiter(rate.Every(time.Hour), 5)

	result := c.Search(context.Background(), "jujutsu", 1)
	if result.FromFallback {
		t.Fatal("重试成功后不应返回内置数据")
	}
	if got := ts.hits.Load(); got != 2 {
		t.Fatalf("请求次数 = %d, want 2", got)
	}
	if tokens := c.perSecond.Tokens(); tokens < 2.5 || tokens > 3.5 {
		t.Errorf("剩余令牌 = %.2f, want 3（每次发送都应经过限流）", tokens)
	}
}
