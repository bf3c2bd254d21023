package progress

import (
	"github.com/smysle/anitrack-go/internal/database/models"
	"github.com/smysle/anitrack-go/pkg/utils"
)

// Stats 追番统计
type Stats struct {
	Total         int     `json:"total"`
	Watching      int     `json:"watching"`
	Completed     int     `json:"completed"`
	OnHold        int     `json:"onHold"`
	Dropped       int     `json:"dropped"`
	PlanToWatch   int     `json:"planToWatch"`
	TotalEpisodes int     `json:"totalEpisodes"` // 已看集数之和
	TotalHours    float64 `json:"totalHours"`
	AverageScore  float64 `json:"averageScore"` // 无评分时为 0
}

// ComputeStats 统计记录，episodeLength 为单集分钟数，<= 0 时使用默认值
func ComputeStats(c models.Collection, episodeLength int) Stats {
	if episodeLength <= 0 {
		episodeLength = DefaultEpisodeLength
	}

	var stats Stats
	var ratingSum, ratingCount int
	for _, entry := range c {
		stats.Total++
		stats.TotalEpisodes += entry.CurrentEpisode

		switch entry.Status {
		case models.StatusWatching:
			stats.Watching++
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusOnHold:
			stats.OnHold++
		case models.StatusDropped:
			stats.Dropped++
		case models.StatusPlanToWatch:
			stats.PlanToWatch++
		}

		if entry.Rating != nil {
			ratingSum += *entry.Rating
			ratingCount++
		}
	}

	stats.TotalHours = utils.RoundTo(float64(stats.TotalEpisodes*episodeLength)/60, 1)
	if ratingCount > 0 {
		stats.AverageScore = utils.RoundTo(float64(ratingSum)/float64(ratingCount), 1)
	}
	return stats
}

// CountByStatus 按状态计数
func (s Stats) CountByStatus(status models.Status) int {
	switch status {
	case models.StatusWatching:
		return s.Watching
	case models.StatusCompleted:
		return s.Completed
	case models.StatusOnHold:
		return s.OnHold
	case models.StatusDropped:
		return s.Dropped
	case models.StatusPlanToWatch:
		return s.PlanToWatch
	default:
		return 0
	}
}
