// Package poller 周期性拉取远端订单快照并合并进 store。
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"order_dashboard/internal/clock"
	"order_dashboard/internal/model"
	"order_dashboard/internal/status"
	"order_dashboard/internal/store"

	"go.uber.org/zap"
)

var (
	// ErrPollInFlight 已有一次拉取在进行，本次被跳过。
	ErrPollInFlight = errors.New("poll already in flight")
	// ErrDiscarded 响应返回时轮询已停止或已重启，结果被丢弃。
	ErrDiscarded = errors.New("poll result discarded after stop")
	ErrRunning   = errors.New("poller already running")
)

// OrderSource 远端订单快照来源。
type OrderSource interface {
	FetchOrders(ctx context.Context) ([]model.Order, error)
}

// State 轮询状态机：Idle -> Polling -> Idle。
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

// Outcome 最近一次拉取的结果。
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Stats 轮询器的可观测状态。
type Stats struct {
	Running     bool      `json:"running"`
	State       State     `json:"state"`
	LastOutcome Outcome   `json:"last_outcome"`
	LastPollAt  time.Time `json:"last_poll_at"`
	Polls       int64     `json:"polls"`
	Skipped     int64     `json:"skipped"`
	Discarded   int64     `json:"discarded"`
}

type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Poller 保证同一时刻最多只有一次拉取在进行；重叠的 tick 直接跳过，不排队。
type Poller struct {
	source OrderSource
	store  *store.Store
	board  *status.Board
	clock  clock.Clock
	log    *zap.Logger
	cfg    Config

	newTicker tickerFunc
	inFlight  atomic.Bool
	polls     atomic.Int64
	skipped   atomic.Int64
	discarded atomic.Int64

	mu          sync.Mutex
	running     bool
	stopped     bool
	gen         uint64
	cancel      context.CancelFunc
	done        chan struct{}
	state       State
	lastOutcome Outcome
	lastPollAt  time.Time
}

func New(source OrderSource, st *store.Store, board *status.Board, c clock.Clock, log *zap.Logger, cfg Config) *Poller {
	if c == nil {
		c = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		source:    source,
		store:     st,
		board:     board,
		clock:     c,
		log:       log.Named("poller"),
		cfg:       cfg.withDefaults(),
		newTicker: realTicker,
		state:     StateIdle,
	}
}

// Start 立即拉取一次，然后按固定间隔继续。parent 取消等同于 Stop 的计时器部分。
func (p *Poller) Start(parent context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(parent)
	p.running = true
	p.stopped = false
	p.gen++
	p.cancel = cancel
	p.done = make(chan struct{})

	tick, stopTick := p.newTicker(p.cfg.Interval)
	go p.loop(ctx, p.gen, tick, stopTick, p.done)
	p.log.Info("poller started", zap.Duration("interval", p.cfg.Interval))
	return nil
}

// Stop 停止计时器并取消在途请求；之后到达的响应不会再写入 store。
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	p.gen++
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.log.Info("poller stopped")
}

func (p *Poller) loop(ctx context.Context, gen uint64, tick <-chan time.Time, stopTick func(), done chan struct{}) {
	defer close(done)
	defer stopTick()

	p.trigger(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.trigger(ctx, gen)
		}
	}
}

// trigger 在独立 goroutine 中拉取，使 tick 循环不被慢响应阻塞，重叠的 tick 在 poll 内被跳过。
func (p *Poller) trigger(ctx context.Context, gen uint64) {
	if p.inFlight.Load() {
		p.skip()
		return
	}
	go func() {
		if err := p.poll(ctx, gen); err != nil && !errors.Is(err, ErrPollInFlight) && !errors.Is(err, ErrDiscarded) {
			p.log.Warn("poll failed", zap.Error(err))
		}
	}()
}

// PollOnce 手动触发一次拉取，与定时拉取共用单飞保护。
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()
	return p.poll(ctx, gen)
}

func (p *Poller) skip() {
	n := p.skipped.Add(1)
	p.log.Debug("poll skipped, previous request still in flight", zap.Int64("skipped_total", n))
}

func (p *Poller) poll(ctx context.Context, gen uint64) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skip()
		return ErrPollInFlight
	}
	defer p.inFlight.Store(false)

	p.mu.Lock()
	p.state = StatePolling
	p.mu.Unlock()
	p.polls.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	orders, err := p.source.FetchOrders(fetchCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateIdle
	if gen != p.gen || p.stopped || ctx.Err() != nil {
		p.discarded.Add(1)
		p.log.Debug("discarding poll response from a stopped generation")
		return ErrDiscarded
	}

	p.lastPollAt = p.clock.Now()
	if err != nil {
		// 失败时保留旧数据，宁可展示过期数据也不清空看板。
		p.lastOutcome = OutcomeFailure
		p.board.Report(status.CategoryPoll, err)
		return err
	}

	res := p.store.Merge(orders)
	p.lastOutcome = OutcomeSuccess
	p.board.Clear(status.CategoryPoll)
	p.log.Debug("orders merged",
		zap.Int("orders", len(orders)),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("removed", res.Removed),
		zap.Int("retained_optimistic", res.Retained),
	)
	return nil
}

// InFlight 当前是否有拉取在进行。
func (p *Poller) InFlight() bool { return p.inFlight.Load() }

// Stats 返回当前状态快照。
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Running:     p.running,
		State:       p.state,
		LastOutcome: p.lastOutcome,
		LastPollAt:  p.lastPollAt,
		Polls:       p.polls.Load(),
		Skipped:     p.skipped.Load(),
		Discarded:   p.discarded.Load(),
	}
}
