package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"order_dashboard/internal/model"

	rd "github.com/redis/go-redis/v9"
)

const (
	// ClaimPending 已认领、远端发送尚未确认。
	ClaimPending = "pending"
	// ClaimSent 远端已确认发送成功。
	ClaimSent = "sent"

	// pendingClaimTTL 持有者在发送途中崩溃时，认领最多阻塞这么久。
	pendingClaimTTL = time.Minute
)

// luaClaimEstimate：不存在则写入 pending 认领并设置较短过期，返回 nil；
// 已存在则原样返回 {token, state, minutes, sent_at}，调用方据此判断是在途还是已发送。
// KEYS[1]=认领key，ARGV[1]=token，ARGV[2]=分钟数，ARGV[3]=发送时间(unix ms)，ARGV[4]=pending 过期秒数
const luaClaimEstimate = `
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
  return redis.call('HMGET', key, 'token', 'state', 'minutes', 'sent_at')
end
redis.call('HSET', key, 'token', ARGV[1], 'state', 'pending', 'minutes', ARGV[2], 'sent_at', ARGV[3])
redis.call('EXPIRE', key, tonumber(ARGV[4]))
return false
`

// luaConfirmEstimateIfMatch 仅持有者可以把认领改为 sent，并延长到完整过期时间。
// KEYS[1]=认领key，ARGV[1]=token，ARGV[2]=分钟数，ARGV[3]=发送时间(unix ms)，ARGV[4]=过期秒数
const luaConfirmEstimateIfMatch = `
local key = KEYS[1]
if redis.call('HGET', key, 'token') ~= ARGV[1] then
  return 0
end
redis.call('HSET', key, 'state', 'sent', 'minutes', ARGV[2], 'sent_at', ARGV[3])
redis.call('EXPIRE', key, tonumber(ARGV[4]))
return 1
`

// luaReleaseEstimateIfMatch 仅当 token 匹配时才删除，避免误删其它实例的认领。
const luaReleaseEstimateIfMatch = `
local key = KEYS[1]
if redis.call('HGET', key, 'token') == ARGV[1] then
  return redis.call('DEL', key)
end
return 0
`

// EstimateGuard 跨看板实例的“一单只通知一次”保护。
type EstimateGuard struct {
	rdb        *rd.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewEstimateGuard(rdb *rd.Client, ttl time.Duration) *EstimateGuard {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &EstimateGuard{rdb: rdb, ttl: ttl, pendingTTL: pendingClaimTTL}
}

// ClaimEstimate 尝试认领订单的通知权：
// - 首次认领返回 (pending 认领, true)
// - 已被认领返回 (已有认领, false)，Confirmed 区分在途与已发送
func (g *EstimateGuard) ClaimEstimate(ctx context.Context, orderID, token string, rec model.SentEstimate) (model.EstimateClaim, bool, error) {
	key := EstimateClaimKey(orderID)

	res, err := g.rdb.Eval(ctx, luaClaimEstimate, []string{key},
		token, int(rec.Value), rec.SentAt.UnixMilli(), seconds(g.pendingTTL)).Result()
	if err == rd.Nil {
		// Lua 返回 false 时 go-redis 得到 redis.Nil，表示认领成功
		return model.EstimateClaim{Token: token, Record: rec}, true, nil
	}
	if err != nil {
		return model.EstimateClaim{}, false, err
	}
	existing, err := parseClaim(res)
	if err != nil {
		return model.EstimateClaim{}, false, fmt.Errorf("estimate claim %s: %w", orderID, err)
	}
	return existing, false, nil
}

// ConfirmEstimate 远端发送成功后把自己的认领标记为 sent。
// 返回 false 表示认领已不属于该 token（过期或被释放）。
func (g *EstimateGuard) ConfirmEstimate(ctx context.Context, orderID, token string, rec model.SentEstimate) (bool, error) {
	n, err := g.rdb.Eval(ctx, luaConfirmEstimateIfMatch, []string{EstimateClaimKey(orderID)},
		token, int(rec.Value), rec.SentAt.UnixMilli(), seconds(g.ttl)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseEstimate 发送失败时释放自己的认领，使订单可以重试。
func (g *EstimateGuard) ReleaseEstimate(ctx context.Context, orderID, token string) error {
	_, err := g.rdb.Eval(ctx, luaReleaseEstimateIfMatch, []string{EstimateClaimKey(orderID)}, token).Int()
	return err
}

func seconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func parseClaim(res any) (model.EstimateClaim, error) {
	fields, ok := res.([]any)
	if !ok || len(fields) != 4 {
		return model.EstimateClaim{}, fmt.Errorf("unexpected claim payload %T", res)
	}
	token, _ := fields[0].(string)
	state, _ := fields[1].(string)
	minutesStr, _ := fields[2].(string)
	sentAtStr, _ := fields[3].(string)

	if state != ClaimPending && state != ClaimSent {
		return model.EstimateClaim{}, fmt.Errorf("invalid claim state %q", state)
	}
	minutes, err := strconv.Atoi(minutesStr)
	if err != nil {
		return model.EstimateClaim{}, fmt.Errorf("invalid minutes %q", minutesStr)
	}
	ms, err := strconv.ParseInt(sentAtStr, 10, 64)
	if err != nil {
		return model.EstimateClaim{}, fmt.Errorf("invalid sent_at %q", sentAtStr)
	}
	return model.EstimateClaim{
		Token:     token,
		Confirmed: state == ClaimSent,
		Record:    model.SentEstimate{Value: model.Estimate(minutes), SentAt: time.UnixMilli(ms)},
	}, nil
}
