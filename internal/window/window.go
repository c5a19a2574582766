// Package window 按命名的相对日期范围筛选带时间戳的记录。
package window

import (
	"fmt"
	"time"
)

// Window 是看板上的日期筛选项，取值即展示名称。
type Window string

const (
	Today      Window = "Today"
	Last3Days  Window = "Last 3 Days"
	Last15Days Window = "Last 15 Days"
	LastMonth  Window = "Last Month"
)

// All 固定的筛选枚举，顺序与下拉框一致。
var All = []Window{Today, Last3Days, Last15Days, LastMonth}

// Timestamped 任何可能缺失时间戳的记录。
type Timestamped interface {
	Timestamp() (time.Time, bool)
}

// ParseWindow 解析展示名称；空串视为 Today。
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return Today, nil
	}
	for _, w := range All {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown date window %q", s)
}

// Cutoff 返回窗口的下界（含）。Today 返回 now 所在日的零点。
func (w Window) Cutoff(now time.Time) time.Time {
	switch w {
	case Last3Days:
		return now.AddDate(0, 0, -3)
	case Last15Days:
		return now.AddDate(0, 0, -15)
	case LastMonth:
		return now.AddDate(0, -1, 0)
	default:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
}

// Contains 判断时间点 t 是否落在窗口内。
// Today 比较的是 now 所在时区的日历日期，而不是最近 24 小时。
func (w Window) Contains(now, t time.Time) bool {
	if w == Today {
		ty, tm, td := t.In(now.Location()).Date()
		ny, nm, nd := now.Date()
		return ty == ny && tm == nm && td == nd
	}
	return !t.Before(w.Cutoff(now))
}

// Predicate 固定 now 后的筛选函数。
func (w Window) Predicate(now time.Time) func(time.Time) bool {
	return func(t time.Time) bool { return w.Contains(now, t) }
}

// Select 返回落在窗口内的子序列，保持原有顺序，不修改入参。
// 没有时间戳的记录在任何窗口下都被排除。
func Select[T Timestamped](w Window, now time.Time, records []T) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		if w.Contains(now, ts) {
			out = append(out, r)
		}
	}
	return out
}
