// Package action 执行操作员动作（标记送达、发送预计时间），并把结果写回 store。
//
// 远端服务没有声明幂等语义，因此去重在这里完成：
//   - 已送达的订单不再发请求；并发的重复请求可以容忍，最终状态只会是已送达；
//   - 已发送过预计时间的订单不再发送；同一订单同一时刻只允许一个发送请求在途；
//   - 配置了 redis 时，多个看板实例之间通过认领 key 保证一单只通知一次。
package action

import (
	"context"
	"errors"
	"sync"
	"time"

	"order_dashboard/internal/clock"
	"order_dashboard/internal/events"
	"order_dashboard/internal/journal"
	"order_dashboard/internal/model"
	"order_dashboard/internal/status"
	"order_dashboard/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound = store.ErrOrderNotFound
	// ErrAlreadySent 该订单已发送过预计时间，本次为空操作。
	ErrAlreadySent = errors.New("time estimate already sent")
	// ErrSendInFlight 该订单已有发送请求在途，本次被忽略。
	ErrSendInFlight = errors.New("time estimate send already in flight")
	// ErrMissingRecipient 订单没有可用的邮箱。
	ErrMissingRecipient = errors.New("order has no email to notify")
)

// Service 远端动作接口。
type Service interface {
	MarkDelivered(ctx context.Context, orderID string) error
	SendTimeEstimate(ctx context.Context, email, expectedTime string) error
}

// NotifyGuard 跨实例的发送认领：发送前认领（pending），成功后确认（sent），失败时释放。
type NotifyGuard interface {
	ClaimEstimate(ctx context.Context, orderID, token string, rec model.SentEstimate) (model.EstimateClaim, bool, error)
	ConfirmEstimate(ctx context.Context, orderID, token string, rec model.SentEstimate) (bool, error)
	ReleaseEstimate(ctx context.Context, orderID, token string) error
}

// Journal 动作审计流水。
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Publisher 动作事件发布。
type Publisher interface {
	Publish(ctx context.Context, e events.ActionEvent) error
}

// Options 可选依赖为空时使用本地实现。
type Options struct {
	Guard   NotifyGuard
	Journal Journal
	Events  Publisher
	Clock   clock.Clock
	Log     *zap.Logger
	// SideEffectTimeout 写流水、发事件、释放认领的超时。
	SideEffectTimeout time.Duration
}

// Coordinator 动作协调器。
type Coordinator struct {
	svc     Service
	store   *store.Store
	board   *status.Board
	guard   NotifyGuard
	journal Journal
	events  Publisher
	clock   clock.Clock
	log     *zap.Logger
	sideTTL time.Duration

	mu      sync.Mutex
	sending map[string]struct{}
}

func New(svc Service, st *store.Store, board *status.Board, opts Options) *Coordinator {
	c := &Coordinator{
		svc:     svc,
		store:   st,
		board:   board,
		guard:   opts.Guard,
		journal: opts.Journal,
		events:  opts.Events,
		clock:   opts.Clock,
		log:     opts.Log,
		sideTTL: opts.SideEffectTimeout,
		sending: make(map[string]struct{}),
	}
	if c.guard == nil {
		c.guard = LocalGuard{}
	}
	if c.journal == nil {
		c.journal = journal.Nop{}
	}
	if c.events == nil {
		c.events = events.Nop{}
	}
	if c.clock == nil {
		c.clock = clock.SystemClock{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.Named("action")
	if c.sideTTL <= 0 {
		c.sideTTL = 3 * time.Second
	}
	return c
}

// MarkDelivered 通知远端订单已送达，成功后本地乐观标记。
// 本地已是送达状态时直接返回 nil，不发请求。
func (c *Coordinator) MarkDelivered(ctx context.Context, orderID string) error {
	o, ok := c.store.Get(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	entry := journal.Entry{AttemptID: uuid.NewString(), Kind: journal.KindMarkDelivered, OrderID: orderID}
	if o.IsDelivered {
		entry.Status = journal.StatusSkipped
		entry.Detail = "already delivered"
		c.record(ctx, entry)
		return nil
	}

	start := time.Now()
	err := c.svc.MarkDelivered(ctx, orderID)
	entry.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		c.board.Report(status.CategoryDeliver, err)
		entry.Status = journal.StatusFailed
		entry.ErrorMsg = err.Error()
		c.record(ctx, entry)
		c.log.Warn("mark delivered failed", zap.String("order_id", orderID), zap.Error(err))
		return err
	}

	changed := c.store.ApplyDelivered(orderID)
	c.board.Clear(status.CategoryDeliver)
	entry.Status = journal.StatusSucceeded
	c.record(ctx, entry)
	if changed {
		c.publish(ctx, events.ActionEvent{
			EventID:    entry.AttemptID,
			Kind:       events.KindDelivered,
			OrderID:    orderID,
			OccurredAt: c.clock.Now(),
		})
	}
	c.log.Info("order marked delivered", zap.String("order_id", orderID), zap.Bool("transitioned", changed))
	return nil
}

// SendTimeEstimate 发送当前选择的预计时间。recipient 为空时使用订单邮箱。
// 已发送过返回 (已有记录, ErrAlreadySent)；同一订单已有请求在途返回 ErrSendInFlight。
func (c *Coordinator) SendTimeEstimate(ctx context.Context, orderID, recipient string) (model.SentEstimate, error) {
	if rec, ok := c.store.Sent(orderID); ok {
		return rec, ErrAlreadySent
	}
	o, ok := c.store.Get(orderID)
	if !ok {
		return model.SentEstimate{}, ErrOrderNotFound
	}
	if recipient == "" {
		recipient = o.Email
	}
	if recipient == "" {
		return model.SentEstimate{}, ErrMissingRecipient
	}

	if !c.beginSend(orderID) {
		c.log.Debug("time estimate send already in flight", zap.String("order_id", orderID))
		return model.SentEstimate{}, ErrSendInFlight
	}
	defer c.endSend(orderID)

	// 等待期间另一次发送可能刚刚完成
	if rec, ok := c.store.Sent(orderID); ok {
		return rec, ErrAlreadySent
	}

	value := c.store.PendingSelection(orderID)
	entry := journal.Entry{
		AttemptID: uuid.NewString(),
		Kind:      journal.KindTimeEstimate,
		OrderID:   orderID,
		Detail:    value.Label(),
	}

	claimed := true
	existing, ok, err := c.guard.ClaimEstimate(ctx, orderID, entry.AttemptID, model.SentEstimate{Value: value, SentAt: c.clock.Now()})
	switch {
	case err != nil:
		// 认领存储不可用时降级为仅本地去重
		claimed = false
		c.log.Warn("estimate claim unavailable, falling back to local dedup", zap.String("order_id", orderID), zap.Error(err))
	case !ok && existing.Confirmed:
		c.store.RecordSent(orderID, existing.Record)
		entry.Status = journal.StatusSkipped
		entry.Detail = "sent by another dashboard"
		c.record(ctx, entry)
		return existing.Record, ErrAlreadySent
	case !ok:
		// 另一实例正在发送，结果未知，本地不记录
		entry.Status = journal.StatusSkipped
		entry.Detail = "send in flight on another dashboard"
		c.record(ctx, entry)
		return model.SentEstimate{}, ErrSendInFlight
	}

	start := time.Now()
	err = c.svc.SendTimeEstimate(ctx, recipient, value.Label())
	entry.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		if claimed {
			c.release(orderID, entry.AttemptID)
		}
		c.board.Report(status.CategoryEstimate, err)
		entry.Status = journal.StatusFailed
		entry.ErrorMsg = err.Error()
		c.record(ctx, entry)
		c.log.Warn("send time estimate failed", zap.String("order_id", orderID), zap.Error(err))
		return model.SentEstimate{}, err
	}

	rec := model.SentEstimate{Value: value, SentAt: c.clock.Now()}
	if claimed {
		c.confirm(orderID, entry.AttemptID, rec)
	}
	c.store.RecordSent(orderID, rec)
	c.board.Clear(status.CategoryEstimate)
	entry.Status = journal.StatusSucceeded
	c.record(ctx, entry)
	c.publish(ctx, events.ActionEvent{
		EventID:      entry.AttemptID,
		Kind:         events.KindEstimateSent,
		OrderID:      orderID,
		Minutes:      value,
		ExpectedTime: value.Label(),
		OccurredAt:   rec.SentAt,
	})
	c.log.Info("time estimate sent", zap.String("order_id", orderID), zap.String("expected_time", value.Label()))
	return rec, nil
}

// Sending 该订单是否有发送请求在途，供展示层禁用按钮。
func (c *Coordinator) Sending(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sending[orderID]
	return ok
}

func (c *Coordinator) beginSend(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sending[orderID]; ok {
		return false
	}
	c.sending[orderID] = struct{}{}
	return true
}

func (c *Coordinator) endSend(orderID string) {
	c.mu.Lock()
	delete(c.sending, orderID)
	c.mu.Unlock()
}

// 流水、事件、释放认领失败只记日志，不改变动作结果。
func (c *Coordinator) sideCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.sideTTL)
}

func (c *Coordinator) record(ctx context.Context, e journal.Entry) {
	sctx, cancel := c.sideCtx(ctx)
	defer cancel()
	if err := c.journal.Record(sctx, e); err != nil {
		c.log.Warn("journal record failed", zap.String("attempt_id", e.AttemptID), zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, e events.ActionEvent) {
	sctx, cancel := c.sideCtx(ctx)
	defer cancel()
	if err := c.events.Publish(sctx, e); err != nil {
		c.log.Warn("publish action event failed", zap.String("event_id", e.EventID), zap.Error(err))
	}
}

func (c *Coordinator) release(orderID, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.sideTTL)
	defer cancel()
	if err := c.guard.ReleaseEstimate(ctx, orderID, token); err != nil {
		c.log.Warn("release estimate claim failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (c *Coordinator) confirm(orderID, token string, rec model.SentEstimate) {
	ctx, cancel := context.WithTimeout(context.Background(), c.sideTTL)
	defer cancel()
	ok, err := c.guard.ConfirmEstimate(ctx, orderID, token, rec)
	switch {
	case err != nil:
		c.log.Warn("confirm estimate claim failed", zap.String("order_id", orderID), zap.Error(err))
	case !ok:
		c.log.Warn("estimate claim lost before confirm", zap.String("order_id", orderID))
	}
}

// LocalGuard 单实例部署时使用：认领总是成功。
type LocalGuard struct{}

func (LocalGuard) ClaimEstimate(_ context.Context, _, token string, rec model.SentEstimate) (model.EstimateClaim, bool, error) {
	return model.EstimateClaim{Token: token, Record: rec}, true, nil
}

func (LocalGuard) ConfirmEstimate(context.Context, string, string, model.SentEstimate) (bool, error) {
	return true, nil
}

func (LocalGuard) ReleaseEstimate(context.Context, string, string) error { return nil }
