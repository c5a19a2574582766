// Package view 把 store 快照投影为看板页面：菜单、日期筛选、按菜品展开的表格行、图表数据。
package view

import (
	"fmt"
	"time"

	"order_dashboard/internal/aggregate"
	"order_dashboard/internal/model"
	"order_dashboard/internal/status"
	"order_dashboard/internal/store"
	"order_dashboard/internal/window"
)

// Menu 看板左侧菜单。
type Menu string

const (
	MenuAll     Menu = "All Orders"
	MenuPending Menu = "Pending Orders"
	MenuVisual  Menu = "Visual Data"
)

// Menus 菜单顺序。
var Menus = []Menu{MenuAll, MenuPending, MenuVisual}

const (
	notAvailable = "N/A"
	timeLayout   = "15:04"

	StatusDelivered = "Delivered"
	StatusPending   = "Pending"
)

// ParseMenu 空串视为 All Orders。
func ParseMenu(s string) (Menu, error) {
	if s == "" {
		return MenuAll, nil
	}
	for _, m := range Menus {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown menu %q", s)
}

// State 页面的交互状态。
type State struct {
	Menu   Menu          `json:"menu"`
	Window window.Window `json:"window"`
}

// DefaultState 初始页面：All Orders + Today。
func DefaultState() State {
	return State{Menu: MenuAll, Window: window.Today}
}

// Row 表格中的一行，对应一个菜品。
// 订单级字段只在 First 行有意义，Span 为该订单占用的行数。
type Row struct {
	OrderID  string  `json:"order_id"`
	First    bool    `json:"first"`
	Span     int     `json:"span,omitempty"`
	Dish     string  `json:"dish"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`

	Time      string `json:"time,omitempty"`
	Date      string `json:"date,omitempty"`
	Email     string `json:"email,omitempty"`
	Token     string `json:"token,omitempty"`
	Status    string `json:"status,omitempty"`
	Selection int    `json:"selection,omitempty"`
	Sent      bool   `json:"sent,omitempty"`
	SentText  string `json:"sent_text,omitempty"`
	Sending   bool   `json:"sending,omitempty"`

	CanDeliver      bool `json:"can_deliver,omitempty"`
	CanSendEstimate bool `json:"can_send_estimate,omitempty"`
}

// Chart 图表页的数据。
type Chart struct {
	Days    aggregate.DayCounts `json:"days"`
	Summary aggregate.Summary   `json:"summary"`
}

// Page 一次渲染所需的全部数据。
type Page struct {
	State        State         `json:"state"`
	Loading      bool          `json:"loading"`
	Error        *status.Alert `json:"error,omitempty"`
	ShowingCount int           `json:"showing_count"`
	PendingCount int           `json:"pending_count"`
	Rows         []Row         `json:"rows,omitempty"`
	Chart        *Chart        `json:"chart,omitempty"`
}

// Options 投影参数。Sending 返回某订单是否有发送中的通知，可为空。
type Options struct {
	Now      time.Time
	Location *time.Location
	Alert    *status.Alert
	Sending  func(orderID string) bool
}

// Build 根据快照与页面状态生成页面。
// ShowingCount 是日期筛选后的订单数；PendingCount 统计全部未送达订单，不受筛选影响。
func Build(snap store.Snapshot, st State, opts Options) Page {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now.In(loc)

	page := Page{
		State:   st,
		Loading: !snap.Loaded,
		Error:   opts.Alert,
	}
	for _, o := range snap.Orders {
		if !o.IsDelivered {
			page.PendingCount++
		}
	}

	filtered := window.Select(st.Window, now, snap.Orders)
	page.ShowingCount = len(filtered)

	switch st.Menu {
	case MenuVisual:
		page.Chart = &Chart{
			Days:    aggregate.CountsByDay(filtered, loc),
			Summary: aggregate.Summarize(filtered, loc),
		}
	case MenuPending:
		page.Rows = Rows(pendingOnly(filtered), snap, now, opts.Sending)
	default:
		page.Rows = Rows(filtered, snap, now, opts.Sending)
	}
	return page
}

func pendingOnly(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if !o.IsDelivered {
			out = append(out, o)
		}
	}
	return out
}

// Rows 把订单展开为按菜品的行；缺失时间戳的订单以 now 展示。
func Rows(orders []model.Order, snap store.Snapshot, now time.Time, sending func(string) bool) []Row {
	rows := make([]Row, 0, len(orders))
	for _, o := range orders {
		ts, ok := o.Timestamp()
		if !ok {
			ts = now
		}
		ts = ts.In(now.Location())

		sel, picked := snap.Pending[o.ID]
		if !picked {
			sel = model.DefaultEstimate
		}
		rec, sent := snap.Sent[o.ID]
		inFlight := sending != nil && sending(o.ID)

		for i, d := range o.Dishes {
			r := Row{
				OrderID:  o.ID,
				Dish:     orNA(d.Name),
				Quantity: d.Quantity,
				Price:    d.Price,
			}
			if i == 0 {
				r.First = true
				r.Span = len(o.Dishes)
				r.Time = ts.Format(timeLayout)
				r.Date = ts.Format(aggregate.DateLayout)
				r.Email = orNA(o.Email)
				r.Token = orNA(o.TokenID)
				r.Status = StatusPending
				if o.IsDelivered {
					r.Status = StatusDelivered
				}
				r.Selection = int(sel)
				r.Sent = sent
				if sent {
					r.Selection = int(rec.Value)
					r.SentText = rec.Describe(now.Location())
				}
				r.Sending = inFlight
				r.CanDeliver = !o.IsDelivered
				r.CanSendEstimate = !o.IsDelivered && !sent && !inFlight
			}
			rows = append(rows, r)
		}
	}
	return rows
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
