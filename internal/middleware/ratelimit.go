package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	rediskey "order_dashboard/pkg/redis"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳(ms)，ARGV[2]=窗口开始时间戳(ms)，ARGV[3]=窗口秒数，ARGV[4]=member，ARGV[5]=limit
// 返回：当前窗口内的请求数（如果 >= limit 则返回 -1 表示限流）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit 动作接口的分布式限流，按 action + 客户端 IP + 订单 ID。
// rdb 为空时直接放行；Redis 出错时同样放行（降级），只依赖本地的重复发送保护。
func RedisRateLimit(rdb *rd.Client, action string, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	windowSec := int64(window.Seconds())
	if windowSec <= 0 {
		windowSec = 1
	}
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		key := rediskey.ActionRateLimitKey(action, c.ClientIP(), c.Param("order_id"))

		now := time.Now()
		nowMS := now.UnixMilli()
		windowStart := nowMS - windowSec*1000
		member := fmt.Sprintf("%d-%d", nowMS, now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMS, windowStart, windowSec, member, limit).Int()
		if err != nil {
			log.Warn("rate limit unavailable, passing through", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "Too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
