// Package remote 是远端订单服务的 HTTP 客户端：拉取订单、标记送达、发送预计时间。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"order_dashboard/internal/model"

	"go.uber.org/zap"
)

const (
	pathGetOrders       = "/getOrders"
	pathMarkAsDelivered = "/markAsDelivered"
	pathTimeDetails     = "/timeDetails"

	// 远端返回体一般很小，限制读取上限防止异常响应占满内存。
	maxBodyBytes = 8 << 20
)

// Client 封装三个远端接口。零值不可用，请使用 NewClient。
type Client struct {
	baseURL string
	http    *http.Client
	loc     *time.Location
	log     *zap.Logger
}

// NewClient 创建客户端；timeout 作用于单次请求。
// loc 用于解析不带时区的时间戳，为 nil 时使用 time.Local。
func NewClient(baseURL string, timeout time.Duration, loc *time.Location, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		loc:     loc,
		log:     log.Named("remote"),
	}
}

// FetchOrders 拉取完整订单快照，按创建时间倒序返回。
func (c *Client) FetchOrders(ctx context.Context) ([]model.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathGetOrders, nil)
	if err != nil {
		return nil, fmt.Errorf("build getOrders request: %w", err)
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, networkErr("getOrders", err)
	}
	if status < 200 || status >= 300 {
		return nil, &Error{
			Kind:    ErrNetwork,
			Op:      "getOrders",
			Status:  status,
			Message: "Error: " + http.StatusText(status),
		}
	}

	orders, dropped, err := decodeOrders(body, c.loc)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		c.log.Warn("dropped malformed order records", zap.Int("dropped", dropped), zap.Int("kept", len(orders)))
	}
	return orders, nil
}

// MarkDelivered 通知远端订单已送达。成功时只看状态码，响应体忽略。
func (c *Client) MarkDelivered(ctx context.Context, orderID string) error {
	status, body, err := c.postJSON(ctx, pathMarkAsDelivered, map[string]string{"orderId": orderID})
	if err != nil {
		return networkErr("markAsDelivered", err)
	}
	if status >= 200 && status < 300 {
		return nil
	}

	msg := "Error marking order as delivered"
	var out struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &out) == nil && out.Error != "" {
		msg = out.Error
	}
	return &Error{Kind: ErrActionRejected, Op: "markAsDelivered", Status: status, Message: msg}
}

// SendTimeEstimate 向顾客邮箱发送预计送达时间，expectedTime 形如 "10 minutes"。
func (c *Client) SendTimeEstimate(ctx context.Context, email, expectedTime string) error {
	status, _, err := c.postJSON(ctx, pathTimeDetails, map[string]string{
		"email":        email,
		"expectedTime": expectedTime,
	})
	if err != nil {
		return networkErr("timeDetails", err)
	}
	if status < 200 || status >= 300 {
		return &Error{Kind: ErrActionRejected, Op: "timeDetails", Status: status, Message: "Failed to send time estimate"}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s body: %w", req.URL.Path, err)
	}
	c.log.Debug("remote call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.StatusCode, body, nil
}
