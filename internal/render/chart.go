// Package render 把按日统计渲染成 PNG 柱状图。
package render

import (
	"errors"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"

	"order_dashboard/internal/aggregate"
)

var ErrNoData = errors.New("no orders to chart")

const (
	barWidth   = 48
	barSpacing = 24
	minWidth   = 512
	height     = 400
)

// BarChartPNG 每个日期一根柱子，顺序与 days.Labels 一致。
func BarChartPNG(w io.Writer, title string, days aggregate.DayCounts) error {
	if days.Len() == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, days.Len())
	maxCount := 0
	for i, label := range days.Labels {
		bars = append(bars, chart.Value{Label: label, Value: float64(days.Counts[i])})
		if days.Counts[i] > maxCount {
			maxCount = days.Counts[i]
		}
	}

	width := days.Len()*(barWidth+barSpacing) + 160
	if width < minWidth {
		width = minWidth
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		// 固定从 0 开始，只有一根柱子时也有可用的纵轴范围
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount) + 1}},
		Bars:  bars,
	}
	return bc.Render(chart.PNG, w)
}
