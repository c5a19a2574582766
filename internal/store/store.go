// Package store 保存本地订单快照，并在轮询合并时保留本地乐观写入。
//
// 合并规则：
//   - 订单身份由 ID 决定，除 IsDelivered 外的字段按快照整体替换；
//   - 本地已标记送达且尚未被快照确认的订单，快照中 isDelivered=false 不会把它改回未送达；
//     快照给出 isDelivered=true 即视为确认，之后以快照为准；
//   - 已发送的预计时间记录只有在订单从快照中消失时才会清除；
//   - 从快照中消失的订单连同其待选时间、发送记录、乐观标记一起删除。
package store

import (
	"errors"
	"sync"

	"order_dashboard/internal/model"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidEstimate = errors.New("invalid time estimate")
	ErrSelectionLocked = errors.New("time estimate already sent")
)

// MergeResult 一次合并的统计，用于日志。
type MergeResult struct {
	Added      int
	Updated    int
	Removed    int
	Duplicates int
	// Retained 快照仍为未送达、但本地乐观标记被保留的订单数。
	Retained int
	// Corroborated 本次快照确认了的乐观送达数。
	Corroborated int
}

// Snapshot 投影层使用的一致性副本。
type Snapshot struct {
	Orders  []model.Order
	Pending map[string]model.Estimate
	Sent    map[string]model.SentEstimate
	Loaded  bool
}

// Store 是并发安全的订单快照。
type Store struct {
	mu     sync.RWMutex
	orders []model.Order
	index  map[string]int

	// optimistic 记录已在本地标记送达、但快照尚未确认的订单。
	optimistic map[string]struct{}
	pending    map[string]model.Estimate
	sent       map[string]model.SentEstimate
	loaded     bool
}

func New() *Store {
	return &Store{
		index:      make(map[string]int),
		optimistic: make(map[string]struct{}),
		pending:    make(map[string]model.Estimate),
		sent:       make(map[string]model.SentEstimate),
	}
}

// Merge 用远端快照替换本地订单列表，顺序以快照为准。
func (s *Store) Merge(snapshot []model.Order) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	orders := make([]model.Order, 0, len(snapshot))
	index := make(map[string]int, len(snapshot))

	for _, o := range snapshot {
		if _, dup := index[o.ID]; dup {
			res.Duplicates++
			continue
		}
		o = o.Clone()
		if _, ok := s.optimistic[o.ID]; ok {
			if o.IsDelivered {
				delete(s.optimistic, o.ID)
				res.Corroborated++
			} else {
				o.IsDelivered = true
				res.Retained++
			}
		}
		if _, existed := s.index[o.ID]; existed {
			res.Updated++
		} else {
			res.Added++
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}

	for id := range s.index {
		if _, ok := index[id]; ok {
			continue
		}
		res.Removed++
		s.forget(id)
	}

	s.orders = orders
	s.index = index
	s.loaded = true
	return res
}

func (s *Store) forget(id string) {
	delete(s.optimistic, id)
	delete(s.pending, id)
	delete(s.sent, id)
}

// ApplyDelivered 本地标记送达。订单不存在或已送达时返回 false。
func (s *Store) ApplyDelivered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || s.orders[i].IsDelivered {
		return false
	}
	s.orders[i].IsDelivered = true
	s.optimistic[id] = struct{}{}
	return true
}

// SetPendingSelection 记录操作员选择的预计时间，不涉及网络。
func (s *Store) SetPendingSelection(id string, value model.Estimate) error {
	if !value.Valid() {
		return ErrInvalidEstimate
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return ErrOrderNotFound
	}
	if _, ok := s.sent[id]; ok {
		return ErrSelectionLocked
	}
	s.pending[id] = value
	return nil
}

// PendingSelection 返回当前选择，未选择时返回默认值。
func (s *Store) PendingSelection(id string) model.Estimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.pending[id]; ok {
		return v
	}
	return model.DefaultEstimate
}

// RecordSent 在发送成功后写入发送记录，只写一次。
// 订单已不在快照中时不写入。
func (s *Store) RecordSent(id string, rec model.SentEstimate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	if _, ok := s.sent[id]; ok {
		return false
	}
	s.sent[id] = rec
	return true
}

// Sent 返回订单的发送记录。
func (s *Store) Sent(id string) (model.SentEstimate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sent[id]
	return rec, ok
}

// Get 按 ID 查询订单副本。
func (s *Store) Get(id string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Order{}, false
	}
	return s.orders[i].Clone(), true
}

// Orders 返回当前订单列表副本，顺序与最近一次快照一致。
func (s *Store) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

// Len 当前订单数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Loaded 是否已完成过至少一次合并。
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Snapshot 在同一把锁下复制订单与本地状态。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Orders:  make([]model.Order, len(s.orders)),
		Pending: make(map[string]model.Estimate, len(s.pending)),
		Sent:    make(map[string]model.SentEstimate, len(s.sent)),
		Loaded:  s.loaded,
	}
	for i, o := range s.orders {
		snap.Orders[i] = o.Clone()
	}
	for k, v := range s.pending {
		snap.Pending[k] = v
	}
	for k, v := range s.sent {
		snap.Sent[k] = v
	}
	return snap
}
