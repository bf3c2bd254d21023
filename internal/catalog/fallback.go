package catalog

import (
	"strings"
)

func floatp(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

// fallbackAnime 网络不可用时的内置数据
var fallbackAnime = []Anime{
	{
		ID: "40748", Title: "Jujutsu Kaisen", TitleEnglish: "Jujutsu Kaisen", TitleJapanese: "呪術廻戦",
		Image: "https://cdn.myanimelist.net/images/anime/1171/109222l.jpg",
		Score: floatp(8.6), Episodes: intp(24), Year: intp(2020), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Action", "Award Winning", "Supernatural"}, Studios: []string{"MAPPA"},
		Rating: "R - 17+ (violence & profanity)", Aired: "Oct 3, 2020 to Mar 27, 2021",
		Synopsis: "Yuuji Itadori swallows a cursed finger and joins a school of jujutsu sorcerers.",
	},
	{
		ID: "52991", Title: "Sousou no Frieren", TitleEnglish: "Frieren: Beyond Journey's End", TitleJapanese: "葬送のフリーレン",
		Image: "https://cdn.myanimelist.net/images/anime/1015/138006l.jpg",
		Score: floatp(9.3), Episodes: intp(28), Year: intp(2023), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Adventure", "Drama", "Fantasy"}, Studios: []string{"Madhouse"},
		Rating: "PG-13 - Teens 13 or older", Aired: "Sep 29, 2023 to Mar 22, 2024",
		Synopsis: "An elf mage looks back on the journey that ended long ago and sets out again.",
	},
	{
		ID: "16498", Title: "Shingeki no Kyojin", TitleEnglish: "Attack on Titan", TitleJapanese: "進撃の巨人",
		Image: "https://cdn.myanimelist.net/images/anime/10/47347l.jpg",
		Score: floatp(8.5), Episodes: intp(25), Year: intp(2013), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Action", "Award Winning", "Drama"}, Studios: []string{"Wit Studio"},
		Rating: "R - 17+ (violence & profanity)", Aired: "Apr 7, 2013 to Sep 29, 2013",
		Synopsis: "Humanity lives behind walls to survive the man-eating Titans.",
	},
	{
		ID: "38000", Title: "Kimetsu no Yaiba", TitleEnglish: "Demon Slayer: Kimetsu no Yaiba", TitleJapanese: "鬼滅の刃",
		Image: "https://cdn.myanimelist.net/images/anime/1286/99889l.jpg",
		Score: floatp(8.4), Episodes: intp(26), Year: intp(2019), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Action", "Award Winning", "Fantasy"}, Studios: []string{"ufotable"},
		Rating: "R - 17+ (violence & profanity)", Aired: "Apr 6, 2019 to Sep 28, 2019",
		Synopsis: "Tanjirou becomes a demon slayer to turn his sister back into a human.",
	},
	{
		ID: "21", Title: "One Piece", TitleEnglish: "One Piece", TitleJapanese: "ONE PIECE",
		Image: "https://cdn.myanimelist.net/images/anime/1244/138851l.jpg",
		Score: floatp(8.7), Year: intp(1999), Type: "TV", Status: "Currently Airing",
		Genres: []string{"Action", "Adventure", "Fantasy"}, Studios: []string{"Toei Animation"},
		Rating: "PG-13 - Teens 13 or older", Aired: "Oct 20, 1999 to ?",
		Synopsis: "Monkey D. Luffy sets sail to find the legendary treasure One Piece.",
	},
	{
		ID: "50265", Title: "Spy x Family", TitleEnglish: "Spy x Family", TitleJapanese: "SPY×FAMILY",
		Image: "https://cdn.myanimelist.net/images/anime/1441/122795l.jpg",
		Score: floatp(8.5), Episodes: intp(12), Year: intp(2022), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Action", "Award Winning", "Comedy"}, Studios: []string{"Wit Studio", "CloverWorks"},
		Rating: "PG-13 - Teens 13 or older", Aired: "Apr 9, 2022 to Jun 25, 2022",
		Synopsis: "A spy, an assassin and a telepath pretend to be a family.",
	},
	{
		ID: "44511", Title: "Chainsaw Man", TitleEnglish: "Chainsaw Man", TitleJapanese: "チェンソーマン",
		Image: "https://cdn.myanimelist.net/images/anime/1806/126216l.jpg",
		Score: floatp(8.5), Episodes: intp(12), Year: intp(2022), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Action", "Fantasy"}, Studios: []string{"MAPPA"},
		Rating: "R - 17+ (violence & profanity)", Aired: "Oct 12, 2022 to Dec 28, 2022",
		Synopsis: "Denji merges with his devil dog Pochita and hunts devils to pay off debt.",
	},
	{
		ID: "5114", Title: "Fullmetal Alchemist: Brotherhood", TitleEnglish: "Fullmetal Alchemist: Brotherhood", TitleJapanese: "鋼の錬金術師 FULLMETAL ALCHEMIST",
		Image: "https://cdn.myanimelist.net/images/anime/1208/94745l.jpg",
		Score: floatp(9.1), Episodes: intp(64), Year: intp(2009), Type: "TV", Status: "Finished Airing",
		Genres: []string{"Action", "Adventure", "Drama", "Fantasy"}, Studios: []string{"Bones"},
		Rating: "R - 17+ (violence & profanity)", Aired: "Apr 5, 2009 to Jul 4, 2010",
		Synopsis: "Two brothers search for the Philosopher's Stone to restore their bodies.",
	},
}

// fallbackTrendingIDs 内置热门榜
var fallbackTrendingIDs = []string{"52991", "40748", "50265", "44511", "21", "16498"}

// fallbackSearch 在内置数据中按标题子串（不区分大小写）过滤
func fallbackSearch(query string) SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	records := make([]Anime, 0)
	for _, a := range fallbackAnime {
		if strings.Contains(strings.ToLower(a.Title), q) || strings.Contains(strings.ToLower(a.TitleEnglish), q) {
			records = append(records, cloneAnime(a))
		}
	}
	return SearchResult{
		Records: records,
		Pagination: Pagination{
			CurrentPage:     1,
			LastVisiblePage: 1,
			Total:           len(records),
			PerPage:         len(records),
		},
		FromFallback: true,
	}
}

// fallbackTrending 内置热门榜，与时间范围无关
func fallbackTrending() []Anime {
	records := make([]Anime, 0, len(fallbackTrendingIDs))
	for _, id := range fallbackTrendingIDs {
		for _, a := range fallbackAnime {
			if a.ID == id {
				records = append(records, cloneAnime(a))
				break
			}
		}
	}
	return records
}

// fallbackRandom 从内置数据中随机选一部
func fallbackRandom(pick func(n int) int) Anime {
	return cloneAnime(fallbackAnime[pick(len(fallbackAnime))])
}
