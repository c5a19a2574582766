package clock

import "time"

// Clock 统一的时间来源，测试中可替换。
type Clock interface {
	Now() time.Time
}

// SystemClock 返回指定时区的当前时间；Location 为空时使用 time.Local。
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Fixed 始终返回同一时刻。
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
