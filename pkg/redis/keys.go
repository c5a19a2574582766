package redis

import "fmt"

// EstimateClaimKey 标记某订单的预计时间通知已被某个看板实例认领。
func EstimateClaimKey(orderID string) string {
	return fmt.Sprintf("order_dashboard:estimate:claim:%s", orderID)
}

// ActionRateLimitKey 动作接口的限流 key，按客户端 IP + 订单维度。
func ActionRateLimitKey(action, clientIP, orderID string) string {
	return fmt.Sprintf("rate_limit:order_dashboard:%s:%s:%s", action, clientIP, orderID)
}
