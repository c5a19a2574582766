// Package status 保存看板当前唯一的一条错误提示。
package status

import (
	"sync"
	"time"

	"order_dashboard/internal/clock"
	"order_dashboard/internal/remote"
)

// Category 错误所属的操作类别；同类操作成功后清除该类错误。
type Category string

const (
	CategoryPoll     Category = "poll"
	CategoryDeliver  Category = "deliver"
	CategoryEstimate Category = "estimate"
)

// Alert 展示给操作员的错误。
type Alert struct {
	Category Category  `json:"category"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Board 只保留最近一次的错误，新错误覆盖旧错误。
type Board struct {
	mu      sync.RWMutex
	clock   clock.Clock
	current *Alert
}

func NewBoard(c clock.Clock) *Board {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Board{clock: c}
}

// Report 记录错误并返回生成的 Alert。
func (b *Board) Report(cat Category, err error) Alert {
	a := Alert{
		Category: cat,
		Kind:     remote.KindOf(err),
		Message:  err.Error(),
		At:       b.clock.Now(),
	}
	b.mu.Lock()
	b.current = &a
	b.mu.Unlock()
	return a
}

// Clear 仅当当前错误属于 cat 时清除，返回是否清除。
func (b *Board) Clear(cat Category) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.Category != cat {
		return false
	}
	b.current = nil
	return true
}

// Current 返回当前错误。
func (b *Board) Current() (Alert, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return Alert{}, false
	}
	return *b.current, true
}
