package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func serve(t *testing.T, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/orders/:order_id/deliver", h, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders/o-1/deliver", nil))
	return w
}

func TestRedisRateLimitDisabled(t *testing.T) {
	w := serve(t, RedisRateLimit(nil, "deliver", 1, time.Second, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	rdb := rd.NewClient(&rd.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	w := serve(t, RedisRateLimit(rdb, "deliver", 1, time.Second, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unreachable redis should pass through, status = %d", w.Code)
	}
}
