// Package utils 工具函数
package utils

import (
	"fmt"
	"math"
	"strings"
)

// statusLabels 追番状态显示名称
var statusLabels = map[string]string{
	"watching":      "Watching",
	"completed":     "Completed",
	"on_hold":       "On Hold",
	"dropped":       "Dropped",
	"plan_to_watch": "Plan to Watch",
}

// StatusLabel 获取状态显示名称
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return "Unknown"
}

// ProgressPercent 计算观看进度百分比（0-100），总集数未知时为 0
func ProgressPercent(current int, total *int) int {
	if total == nil || *total <= 0 || current <= 0 {
		return 0
	}
	if current >= *total {
		return 100
	}
	return int(math.Round(float64(current) * 100 / float64(*total)))
}

// FormatScore 格式化评分
func FormatScore(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *score)
}

// FormatEpisodes 格式化集数进度，例如 "3 / 12"、"3 / ?"
func FormatEpisodes(current int, total *int) string {
	if total == nil {
		return fmt.Sprintf("%d / ?", current)
	}
	return fmt.Sprintf("%d / %d", current, *total)
}

// FormatHours 格式化观看时长
func FormatHours(hours float64) string {
	if hours < 1 {
		return fmt.Sprintf("%d min", int(math.Round(hours*60)))
	}
	return fmt.Sprintf("%.1f h", hours)
}

// Truncate 截断过长文本（按字符计数）
func Truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if n <= 0 || len(runes) <= n {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// RoundTo 四舍五入到指定小数位
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
