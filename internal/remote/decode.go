package remote

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"order_dashboard/internal/model"
)

const invalidPayloadMsg = "Invalid data structure received from server"

// 远端时间戳一般是 ISO-8601（毫秒 + Z），兼容少量其它写法。
// 不带时区的写法按看板时区解释。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// flexString 兼容字符串或数字形式的字段（tokenId 在部分数据中是数字）。
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type wireDish struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type wireOrder struct {
	ID          flexString  `json:"_id"`
	CreatedAt   flexString  `json:"createdAt"`
	Email       string      `json:"email"`
	TokenID     flexString  `json:"tokenId"`
	IsDelivered bool        `json:"isDelivered"`
	Dishes      *[]wireDish `json:"dishes"`
}

type ordersEnvelope struct {
	Orders json.RawMessage `json:"orders"`
}

// decodeOrders 校验 getOrders 的响应体。
// 整体结构不合法时返回 ErrMalformedResponse；单条记录不合法时只丢弃该条，dropped 计数返回给调用方。
func decodeOrders(body []byte, loc *time.Location) (orders []model.Order, dropped int, err error) {
	var env ordersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, &Error{Kind: ErrMalformedResponse, Op: "getOrders", Message: invalidPayloadMsg, Err: err}
	}
	raw := bytes.TrimSpace(env.Orders)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, 0, &Error{Kind: ErrMalformedResponse, Op: "getOrders", Message: invalidPayloadMsg}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, &Error{Kind: ErrMalformedResponse, Op: "getOrders", Message: invalidPayloadMsg, Err: err}
	}

	orders = make([]model.Order, 0, len(items))
	for _, item := range items {
		o, ok := decodeOrder(item, loc)
		if !ok {
			dropped++
			continue
		}
		orders = append(orders, o)
	}
	sortNewestFirst(orders)
	return orders, dropped, nil
}

func decodeOrder(item json.RawMessage, loc *time.Location) (model.Order, bool) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 || item[0] != '{' {
		return model.Order{}, false
	}
	var w wireOrder
	if err := json.Unmarshal(item, &w); err != nil {
		return model.Order{}, false
	}
	if w.ID == "" || w.Dishes == nil {
		return model.Order{}, false
	}
	dishes := make([]model.Dish, 0, len(*w.Dishes))
	for _, d := range *w.Dishes {
		dishes = append(dishes, model.Dish{Name: d.Name, Quantity: d.Quantity, Price: d.Price})
	}
	o := model.Order{
		ID:          string(w.ID),
		Email:       w.Email,
		TokenID:     string(w.TokenID),
		IsDelivered: w.IsDelivered,
		Dishes:      dishes,
	}
	o.CreatedAt = parseTimestamp(string(w.CreatedAt), loc)
	return o, true
}

// parseTimestamp 解析失败时返回零值，记录保留但不进入任何日期窗口。
func parseTimestamp(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// sortNewestFirst 按创建时间倒序（稳定排序），缺失时间的记录排在最后。
func sortNewestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].CreatedAt, orders[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}
