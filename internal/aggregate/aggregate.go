// Package aggregate 从筛选后的订单计算图表数据与汇总统计。
package aggregate

import (
	"time"

	"order_dashboard/internal/window"
)

// DateLayout 与看板日期列一致：M/D/YYYY。
const DateLayout = "1/2/2006"

// NoBestDay 没有订单时的 best day 文案。
const NoBestDay = "N/A"

// DayCounts 按首次出现顺序排列的日期桶，Labels 与 Counts 一一对应。
type DayCounts struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
}

// Map 以 label -> count 的形式返回。
func (d DayCounts) Map() map[string]int {
	out := make(map[string]int, len(d.Labels))
	for i, l := range d.Labels {
		out[l] = d.Counts[i]
	}
	return out
}

// Len 日期桶个数。
func (d DayCounts) Len() int { return len(d.Labels) }

// Summary 汇总统计。
type Summary struct {
	Total        int    `json:"total"`
	BestDayLabel string `json:"best_day_label"`
	BestDayCount int    `json:"best_day_count"`
}

// DayDetail 图表中单个柱子的明细。
type DayDetail struct {
	Date   string `json:"date"`
	Orders int    `json:"orders"`
}

// CountsByDay 按 loc 下的日历日期分桶；没有时间戳的记录跳过。
func CountsByDay[T window.Timestamped](records []T, loc *time.Location) DayCounts {
	if loc == nil {
		loc = time.Local
	}
	var out DayCounts
	pos := make(map[string]int)
	for _, r := range records {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		label := ts.In(loc).Format(DateLayout)
		if i, seen := pos[label]; seen {
			out.Counts[i]++
			continue
		}
		pos[label] = len(out.Labels)
		out.Labels = append(out.Labels, label)
		out.Counts = append(out.Counts, 1)
	}
	return out
}

// Summarize 计算总数与订单最多的一天；并列时取先出现的日期。
func Summarize[T window.Timestamped](records []T, loc *time.Location) Summary {
	if len(records) == 0 {
		return Summary{Total: 0, BestDayLabel: NoBestDay, BestDayCount: 0}
	}
	days := CountsByDay(records, loc)
	s := Summary{Total: len(records), BestDayLabel: NoBestDay}
	for i, label := range days.Labels {
		if days.Counts[i] > s.BestDayCount {
			s.BestDayLabel = label
			s.BestDayCount = days.Counts[i]
		}
	}
	return s
}

// Detail 返回某个日期桶的订单数。
func (d DayCounts) Detail(label string) (DayDetail, bool) {
	for i, l := range d.Labels {
		if l == label {
			return DayDetail{Date: l, Orders: d.Counts[i]}, true
		}
	}
	return DayDetail{}, false
}
