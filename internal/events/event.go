package events

import (
	"fmt"
	"time"

	"order_dashboard/internal/model"
)

// Kind 事件类型。
type Kind string

const (
	KindDelivered    Kind = "order.delivered"
	KindEstimateSent Kind = "order.estimate_sent"
)

// ActionEvent 操作员动作成功后写入 Kafka 的事件。
type ActionEvent struct {
	EventID string `json:"event_id"`
	Kind    Kind   `json:"kind"`
	// Source 发布事件的看板实例，消费时跳过自己发出的事件。
	Source       string         `json:"source,omitempty"`
	OrderID      string         `json:"order_id"`
	Minutes      model.Estimate `json:"minutes,omitempty"`
	ExpectedTime string         `json:"expected_time,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Validate 做最小字段校验，防止下游处理脏消息。
func (e ActionEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	switch e.Kind {
	case KindDelivered:
	case KindEstimateSent:
		if e.ExpectedTime == "" {
			return fmt.Errorf("expected_time is required for %s", e.Kind)
		}
		if !e.Minutes.Valid() {
			return fmt.Errorf("invalid minutes %d for %s", e.Minutes, e.Kind)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}
