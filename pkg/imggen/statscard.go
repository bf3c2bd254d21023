// Package imggen 图片生成模块
package imggen

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// StatusCount 单个状态的数量
type StatusCount struct {
	Label string
	Count int
}

// StatsCard 追番统计卡片数据
type StatsCard struct {
	Title         string
	Total         int
	Statuses      []StatusCount
	TotalEpisodes int
	WatchTime     string // 格式化后的观看时长
	AverageScore  string
	GeneratedAt   time.Time
}

// 颜色定义
var (
	bgColor      = color.RGBA{25, 25, 35, 255}   // 深色背景
	topColor     = color.RGBA{30, 60, 114, 255}  // 渐变起始
	cardColor    = color.RGBA{35, 35, 50, 200}   // 卡片背景
	textColor    = color.RGBA{255, 255, 255, 255}
	subTextColor = color.RGBA{180, 180, 180, 255}
	accentColor  = color.RGBA{138, 43, 226, 255} // 紫色强调
	trackColor   = color.RGBA{60, 60, 80, 255}
)

// barColors 各状态进度条颜色，按展示顺序
var barColors = []color.RGBA{
	{46, 204, 113, 255},  // 在看
	{52, 152, 219, 255},  // 看完
	{241, 196, 15, 255},  // 搁置
	{231, 76, 60, 255},   // 弃番
	{149, 165, 166, 255}, // 计划
}

const (
	cardWidth    = 600
	headerHeight = 130
	rowHeight    = 44
	summaryH     = 90
	footerHeight = 50
	padding      = 20
)

var (
	fontsOnce sync.Once
	fontsErr  error
	regular   *truetype.Font
	bold      *truetype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regular, fontsErr = truetype.Parse(goregular.TTF); fontsErr != nil {
			return
		}
		bold, fontsErr = truetype.Parse(gobold.TTF)
	})
	if fontsErr != nil {
		return fmt.Errorf("加载字体失败: %w", fontsErr)
	}
	return nil
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// GenerateStatsCard 生成追番统计卡片
func GenerateStatsCard(card StatsCard) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}

	height := headerHeight + len(card.Statuses)*rowHeight + summaryH + footerHeight + padding*2

	// 创建画布
	dc := gg.NewContext(cardWidth, height)

	drawBackground(dc, cardWidth, height)
	drawHeader(dc, card)

	// 各状态数量
	y := float64(headerHeight + padding)
	for i, s := range card.Statuses {
		drawStatusRow(dc, y+float64(i*rowHeight), s, card.Total, barColors[i%len(barColors)])
	}

	drawSummary(dc, y+float64(len(card.Statuses)*rowHeight)+10, card)
	drawFooter(dc, height, card.GeneratedAt)

	// 导出为 PNG
	return exportPNG(dc)
}

// drawBackground 绘制渐变背景
func drawBackground(dc *gg.Context, width, height int) {
	for y := 0; y < height; y++ {
		t := float64(y) / float64(height)
		r := uint8(float64(topColor.R)*(1-t) + float64(bgColor.R)*t)
		g := uint8(float64(topColor.G)*(1-t) + float64(bgColor.G)*t)
		b := uint8(float64(topColor.B)*(1-t) + float64(bgColor.B)*t)
		dc.SetColor(color.RGBA{r, g, b, 255})
		dc.DrawRectangle(0, float64(y), float64(width), 1)
		dc.Fill()
	}
}

// drawHeader 绘制标题
func drawHeader(dc *gg.Context, card StatsCard) {
	title := card.Title
	if title == "" {
		title = "Anime Stats"
	}

	dc.SetFontFace(face(bold, 28))
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, cardWidth/2, 45, 0.5, 0.5)

	dc.SetFontFace(face(regular, 16))
	dc.SetColor(subTextColor)
	dc.DrawStringAnchored(fmt.Sprintf("%d anime tracked", card.Total), cardWidth/2, 82, 0.5, 0.5)

	// 分隔线
	dc.SetColor(accentColor)
	dc.SetLineWidth(2)
	dc.DrawLine(50, 112, cardWidth-50, 112)
	dc.Stroke()
}

// drawStatusRow 绘制单个状态的数量条
func drawStatusRow(dc *gg.Context, y float64, s StatusCount, total int, barColor color.RGBA) {
	labelX := 40.0
	barX := 190.0
	barW := float64(cardWidth) - barX - 90
	barH := 14.0
	midY := y + rowHeight/2

	dc.SetFontFace(face(regular, 16))
	dc.SetColor(textColor)
	dc.DrawStringAnchored(s.Label, labelX, midY, 0, 0.5)

	// 底槽
	dc.SetColor(trackColor)
	dc.DrawRoundedRectangle(barX, midY-barH/2, barW, barH, barH/2)
	dc.Fill()

	// 数量条
	if total > 0 && s.Count > 0 {
		w := barW * float64(s.Count) / float64(total)
		if w < barH {
			w = barH
		}
		dc.SetColor(barColor)
		dc.DrawRoundedRectangle(barX, midY-barH/2, w, barH, barH/2)
		dc.Fill()
	}

	dc.SetFontFace(face(bold, 16))
	dc.SetColor(textColor)
	dc.DrawStringAnchored(fmt.Sprintf("%d", s.Count), float64(cardWidth)-40, midY, 1, 0.5)
}

// drawSummary 绘制集数、时长与平均分
func drawSummary(dc *gg.Context, y float64, card StatsCard) {
	cardX := 20.0
	cardW := float64(cardWidth - 40)
	cardH := float64(summaryH - 20)

	dc.SetColor(cardColor)
	dc.DrawRoundedRectangle(cardX, y, cardW, cardH, 10)
	dc.Fill()

	items := []struct {
		label string
		value string
	}{
		{"Episodes", fmt.Sprintf("%d", card.TotalEpisodes)},
		{"Watch time", card.WatchTime},
		{"Avg score", card.AverageScore},
	}

	colW := cardW / float64(len(items))
	for i, item := range items {
		x := cardX + colW*float64(i) + colW/2

		dc.SetFontFace(face(bold, 20))
		dc.SetColor(textColor)
		dc.DrawStringAnchored(item.value, x, y+cardH/2-10, 0.5, 0.5)

		dc.SetFontFace(face(regular, 13))
		dc.SetColor(subTextColor)
		dc.DrawStringAnchored(item.label, x, y+cardH/2+16, 0.5, 0.5)
	}
}

// drawFooter 绘制底部
func drawFooter(dc *gg.Context, height int, generatedAt time.Time) {
	dc.SetFontFace(face(regular, 12))
	dc.SetColor(subTextColor)
	footerText := fmt.Sprintf("Generated %s | AniTrack", generatedAt.Format("2006-01-02 15:04"))
	dc.DrawStringAnchored(footerText, cardWidth/2, float64(height-25), 0.5, 0.5)
}

// exportPNG 导出为 PNG
func exportPNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}
