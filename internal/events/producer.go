// Package events 将操作员动作以事件形式发布到 Kafka，供下游与其他看板实例订阅。
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer 封装 Kafka 写入器。
type Producer struct {
	w      *kafka.Writer
	source string
}

// NewProducer 创建生产者：
// - Hash + Key: 同一订单的事件落到同一分区，保证单订单内有序。
// - RequireAll: 等待 ISR 副本确认。
// - MaxAttempts/Timeout: 控制重试与超时边界，避免拖慢操作员请求。
func NewProducer(brokers []string, topic, source string) *Producer {
	return &Producer{
		source: source,
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  3 * time.Second,
			BatchTimeout: 20 * time.Millisecond,
		},
	}
}

// Close 释放 writer 资源。
func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条事件，以 order_id 作为 key；Source 为空时填入本实例。
func (p *Producer) Publish(ctx context.Context, e ActionEvent) error {
	if e.Source == "" {
		e.Source = p.source
	}
	if err := e.Validate(); err != nil {
		return err
	}
	b, err := encode(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	})
}

func encode(e ActionEvent) ([]byte, error) {
	return json.Marshal(e)
}

// Nop 未配置 KAFKA_BROKERS 时使用。
type Nop struct{}

func (Nop) Publish(context.Context, ActionEvent) error { return nil }

func (Nop) Close() error { return nil }
