package model

import (
	"fmt"
	"time"
)

// Estimate 预计送达时间（分钟），取值固定为 EstimateOptions 之一。
type Estimate int

const (
	Estimate10 Estimate = 10
	Estimate20 Estimate = 20
	Estimate30 Estimate = 30
)

// EstimateOptions 按升序排列，第一个即默认值。
var EstimateOptions = []Estimate{Estimate10, Estimate20, Estimate30}

// DefaultEstimate 未选择时使用最小值。
const DefaultEstimate = Estimate10

// Valid 判断是否属于固定枚举。
func (e Estimate) Valid() bool {
	for _, opt := range EstimateOptions {
		if e == opt {
			return true
		}
	}
	return false
}

// Label 通知里携带的可读时长，例如 "10 minutes"。
func (e Estimate) Label() string {
	return fmt.Sprintf("%d minutes", int(e))
}

// SentEstimate 标记某订单的预计时间通知已成功发出。
type SentEstimate struct {
	Value  Estimate  `json:"value"`
	SentAt time.Time `json:"sent_at"`
}

// Describe 展示用文案："10 minutes sent at 3:04:05 PM"。
func (s SentEstimate) Describe(loc *time.Location) string {
	at := s.SentAt
	if loc != nil {
		at = at.In(loc)
	}
	return fmt.Sprintf("%s sent at %s", s.Value.Label(), at.Format("3:04:05 PM"))
}

// EstimateClaim 跨实例认领的当前状态。Confirmed 为 false 表示持有者的发送尚未完成，
// 此时 Record 只是它准备发送的内容，不能当作已发送。
type EstimateClaim struct {
	Token     string
	Confirmed bool
	Record    SentEstimate
}
