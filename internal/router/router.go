package router

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"order_dashboard/internal/action"
	"order_dashboard/internal/aggregate"
	"order_dashboard/internal/clock"
	"order_dashboard/internal/journal"
	"order_dashboard/internal/middleware"
	"order_dashboard/internal/model"
	"order_dashboard/internal/poller"
	"order_dashboard/internal/remote"
	"order_dashboard/internal/render"
	"order_dashboard/internal/status"
	"order_dashboard/internal/store"
	"order_dashboard/internal/view"
	"order_dashboard/internal/window"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// JournalReader 查询动作流水。
type JournalReader interface {
	Recent(ctx context.Context, orderID string, limit int) ([]journal.Entry, error)
}

// Deps 路由依赖。Redis 为空时不限流，Journal 为空时流水接口返回空列表。
type Deps struct {
	Store       *store.Store
	Poller      *poller.Poller
	Coordinator *action.Coordinator
	Board       *status.Board
	Journal     JournalReader
	Clock       clock.Clock
	Location    *time.Location
	Redis       *rd.Client
	RateLimit   int
	RateWindow  time.Duration
	Log         *zap.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	if d.Clock == nil {
		d.Clock = clock.SystemClock{Location: d.Location}
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/api")
	// 看板
	api.GET("/dashboard", getDashboard(d))
	api.GET("/chart", getChart(d))
	api.GET("/chart.png", getChartPNG(d))
	api.GET("/chart/day", getChartDay(d))
	api.GET("/summary", getSummary(d))
	api.GET("/status", getStatus(d))
	api.POST("/refresh", refresh(d))
	// 订单动作
	api.PUT("/orders/:order_id/estimate", setEstimate(d))
	api.POST("/orders/:order_id/deliver",
		middleware.RedisRateLimit(d.Redis, "deliver", d.RateLimit, d.RateWindow, d.Log), markDelivered(d))
	api.POST("/orders/:order_id/estimate/send",
		middleware.RedisRateLimit(d.Redis, "estimate", d.RateLimit, d.RateWindow, d.Log), sendEstimate(d))
	api.GET("/actions", listActions(d))
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"code": code, "msg": msg})
}

// alert 当前错误提示，没有时返回 nil。
func alert(d Deps) *status.Alert {
	if a, ok := d.Board.Current(); ok {
		return &a
	}
	return nil
}

// parseWindow 解析 ?window=，非法时写 400 并返回 false。
func parseWindow(c *gin.Context) (window.Window, bool) {
	w, err := window.ParseWindow(c.Query("window"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return w, true
}

// filtered 当前日期窗口内的订单。
func filtered(d Deps, w window.Window) []model.Order {
	now := d.Clock.Now().In(d.Location)
	return window.Select(w, now, d.Store.Orders())
}

// getDashboard 返回整页数据：表格行 / 图表、计数、加载状态与错误提示。
func getDashboard(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		menu, err := view.ParseMenu(c.Query("menu"))
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		w, ok := parseWindow(c)
		if !ok {
			return
		}
		page := view.Build(d.Store.Snapshot(), view.State{Menu: menu, Window: w}, view.Options{
			Now:      d.Clock.Now(),
			Location: d.Location,
			Alert:    alert(d),
			Sending:  d.Coordinator.Sending,
		})
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": page})
	}
}

// getChart 按日柱状图数据与汇总。
func getChart(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := parseWindow(c)
		if !ok {
			return
		}
		orders := filtered(d, w)
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": view.Chart{
			Days:    aggregate.CountsByDay(orders, d.Location),
			Summary: aggregate.Summarize(orders, d.Location),
		}})
	}
}

// getChartPNG 直接输出 PNG 图片。
func getChartPNG(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := parseWindow(c)
		if !ok {
			return
		}
		days := aggregate.CountsByDay(filtered(d, w), d.Location)
		var buf bytes.Buffer
		if err := render.BarChartPNG(&buf, "Orders per day ("+string(w)+")", days); err != nil {
			if errors.Is(err, render.ErrNoData) {
				fail(c, http.StatusNotFound, "No orders in the selected date range")
				return
			}
			d.Log.Error("render chart failed", zap.Error(err))
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

// getChartDay 点击柱子后的单日明细。
func getChartDay(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := parseWindow(c)
		if !ok {
			return
		}
		date := c.Query("date")
		if date == "" {
			fail(c, http.StatusBadRequest, "date is required")
			return
		}
		detail, found := aggregate.CountsByDay(filtered(d, w), d.Location).Detail(date)
		if !found {
			fail(c, http.StatusNotFound, "no orders on "+date)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": detail})
	}
}

// getSummary 总数与订单最多的一天。
func getSummary(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := parseWindow(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": aggregate.Summarize(filtered(d, w), d.Location)})
	}
}

// getStatus 轮询器状态与当前错误。
func getStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"poller": d.Poller.Stats(),
			"orders": d.Store.Len(),
			"loaded": d.Store.Loaded(),
			"error":  alert(d),
		}})
	}
}

// refresh 手动拉取一次；已有拉取在途时直接返回，不排队。
func refresh(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := d.Poller.PollOnce(c.Request.Context())
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"refreshed": true, "orders": d.Store.Len()}})
		case errors.Is(err, poller.ErrPollInFlight):
			c.JSON(http.StatusAccepted, gin.H{"code": 0, "data": gin.H{"refreshed": false}, "msg": err.Error()})
		case errors.Is(err, poller.ErrDiscarded):
			fail(c, http.StatusServiceUnavailable, err.Error())
		default:
			fail(c, http.StatusBadGateway, err.Error())
		}
	}
}

// setEstimate 修改某订单待发送的预计时间。
func setEstimate(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Minutes int `json:"minutes" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		id := c.Param("order_id")
		if err := d.Store.SetPendingSelection(id, model.Estimate(req.Minutes)); err != nil {
			writeActionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"order_id": id, "minutes": req.Minutes}})
	}
}

// markDelivered 标记送达；已送达的订单直接返回成功。
func markDelivered(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("order_id")
		if err := d.Coordinator.MarkDelivered(c.Request.Context(), id); err != nil {
			writeActionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"order_id": id, "status": view.StatusDelivered}})
	}
}

// sendEstimate 发送预计时间通知；body 可选，email 为空时使用订单邮箱。
func sendEstimate(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		id := c.Param("order_id")
		rec, err := d.Coordinator.SendTimeEstimate(c.Request.Context(), id, req.Email)
		if err != nil {
			writeActionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"order_id":  id,
			"minutes":   int(rec.Value),
			"sent_at":   rec.SentAt,
			"sent_text": rec.Describe(d.Location),
		}})
	}
}

// listActions 最近的动作流水，可按 order_id 过滤。
func listActions(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				fail(c, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		list, err := d.Journal.Recent(c.Request.Context(), c.Query("order_id"), limit)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []journal.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// writeActionError 将动作错误映射为 HTTP 状态码；远端错误的文案原样返回给操作员。
func writeActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidEstimate), errors.Is(err, action.ErrMissingRecipient):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrSelectionLocked),
		errors.Is(err, action.ErrAlreadySent),
		errors.Is(err, action.ErrSendInFlight):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, remote.ErrNetwork),
		errors.Is(err, remote.ErrMalformedResponse),
		errors.Is(err, remote.ErrActionRejected):
		fail(c, http.StatusBadGateway, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
