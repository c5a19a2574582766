package model

import "time"

// Dish 订单中的一行菜品，拉取后不可变。
type Dish struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order 远端订单快照中的一条记录。
// 身份由 ID 决定；除本地乐观控制的字段外，每次轮询都整体替换。
type Order struct {
	ID          string    `json:"_id"`
	CreatedAt   time.Time `json:"createdAt"` // 零值表示远端未给出时间
	Email       string    `json:"email"`
	TokenID     string    `json:"tokenId"`
	Dishes      []Dish    `json:"dishes"`
	IsDelivered bool      `json:"isDelivered"`
}

// Timestamp 实现 window.Timestamped；缺失时间的记录返回 false。
func (o Order) Timestamp() (time.Time, bool) {
	if o.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return o.CreatedAt, true
}

// Clone 深拷贝菜品切片，避免调用方与 store 共享底层数组。
func (o Order) Clone() Order {
	if o.Dishes != nil {
		dishes := make([]Dish, len(o.Dishes))
		copy(dishes, o.Dishes)
		o.Dishes = dishes
	}
	return o
}
