package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"order_dashboard/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Applier 把其他看板实例的动作应用到本地快照，*store.Store 满足该接口。
type Applier interface {
	ApplyDelivered(id string) bool
	RecordSent(id string, rec model.SentEstimate) bool
}

// Consumer 订阅动作事件，让多个看板实例之间的本地状态保持一致。
// 每个实例需要配置不同且重启不变的 groupID，从而都能收到全部事件，offset 也能跨重启延续。
type Consumer struct {
	r      *kafka.Reader
	source string
	apply  Applier
	log    *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID, source string, apply Applier, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    1e6,
			MaxWait:     time.Second,
		}),
		source: source,
		apply:  apply,
		log:    log.Named("events"),
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 阻塞读取直到 ctx 取消或 reader 关闭。
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				c.log.Warn("read action event failed", zap.Error(err))
			}
			return
		}
		if err := c.handle(m.Value); err != nil {
			c.log.Warn("drop action event", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handle 解码并应用一条事件。本实例发出的事件直接跳过。
func (c *Consumer) handle(value []byte) error {
	var e ActionEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Source == c.source {
		return nil
	}

	var applied bool
	switch e.Kind {
	case KindDelivered:
		applied = c.apply.ApplyDelivered(e.OrderID)
	case KindEstimateSent:
		applied = c.apply.RecordSent(e.OrderID, model.SentEstimate{Value: e.Minutes, SentAt: e.OccurredAt})
	}
	c.log.Debug("peer action event",
		zap.String("kind", string(e.Kind)),
		zap.String("order_id", e.OrderID),
		zap.String("source", e.Source),
		zap.Bool("applied", applied),
	)
	return nil
}
