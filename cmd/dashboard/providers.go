package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"order_dashboard/internal/action"
	"order_dashboard/internal/clock"
	"order_dashboard/internal/config"
	"order_dashboard/internal/events"
	"order_dashboard/internal/journal"
	"order_dashboard/internal/logger"
	"order_dashboard/internal/poller"
	"order_dashboard/internal/remote"
	"order_dashboard/internal/router"
	"order_dashboard/internal/status"
	"order_dashboard/internal/store"
	rediskey "order_dashboard/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// actionJournal 同时满足写入（协调器）与查询（路由）。
type actionJournal interface {
	action.Journal
	router.JournalReader
	Close() error
}

type publisher interface {
	action.Publisher
	Close() error
}

// instanceID 本进程的唯一标识，用于事件来源与消费组。
type instanceID string

func newInstanceID() instanceID { return instanceID(uuid.NewString()) }

func loadConfig() (config.AppConfig, error) {
	return config.Load()
}

func newLogger(lc fx.Lifecycle, cfg config.AppConfig) (*zap.Logger, error) {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func newClock(cfg config.AppConfig) clock.Clock {
	return clock.SystemClock{Location: cfg.Location}
}

func newRemote(cfg config.AppConfig, log *zap.Logger) *remote.Client {
	return remote.NewClient(cfg.OrderAPIBaseURL, cfg.RequestTimeout, cfg.Location, log)
}

func newStore() *store.Store { return store.New() }

func newBoard(c clock.Clock) *status.Board { return status.NewBoard(c) }

func newPoller(cfg config.AppConfig, client *remote.Client, st *store.Store, board *status.Board, c clock.Clock, log *zap.Logger) *poller.Poller {
	return poller.New(client, st, board, c, log, poller.Config{
		Interval: cfg.PollInterval,
		Timeout:  cfg.RequestTimeout,
	})
}

// newRedis 未配置 REDIS_ADDR 时返回 nil，限流与跨实例认领随之关闭。
func newRedis(lc fx.Lifecycle, cfg config.AppConfig, log *zap.Logger) *rd.Client {
	if !cfg.RedisEnabled() {
		log.Info("redis disabled, using local estimate dedup only")
		return nil
	}
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// 启动时连不上不阻止启动，运行期按降级处理
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error { return rdb.Close() },
	})
	return rdb
}

func newGuard(cfg config.AppConfig, rdb *rd.Client) action.NotifyGuard {
	if rdb == nil {
		return action.LocalGuard{}
	}
	return rediskey.NewEstimateGuard(rdb, cfg.EstimateClaimTTL)
}

func newJournal(lc fx.Lifecycle, cfg config.AppConfig, log *zap.Logger) (actionJournal, error) {
	if cfg.JournalPath == "" {
		return journal.Nop{}, nil
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	log.Info("action journal enabled", zap.String("path", cfg.JournalPath))
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return j.Close() }})
	return j, nil
}

func newPublisher(lc fx.Lifecycle, cfg config.AppConfig, id instanceID, log *zap.Logger) publisher {
	if !cfg.KafkaEnabled() {
		return events.Nop{}
	}
	p := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, string(id))
	log.Info("action events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return p.Close() }})
	return p
}

// runConsumer 订阅其他实例的动作事件并应用到本地快照。
func runConsumer(lc fx.Lifecycle, cfg config.AppConfig, id instanceID, st *store.Store, log *zap.Logger) {
	if !cfg.KafkaEnabled() {
		return
	}
	c := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, string(id), st, log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				c.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return c.Close()
		},
	})
}

func newCoordinator(client *remote.Client, st *store.Store, board *status.Board, guard action.NotifyGuard,
	j actionJournal, pub publisher, c clock.Clock, log *zap.Logger) *action.Coordinator {
	return action.New(client, st, board, action.Options{
		Guard:   guard,
		Journal: j,
		Events:  pub,
		Clock:   c,
		Log:     log,
	})
}

type engineParams struct {
	fx.In

	Config      config.AppConfig
	Log         *zap.Logger
	Store       *store.Store
	Poller      *poller.Poller
	Coordinator *action.Coordinator
	Board       *status.Board
	Journal     actionJournal
	Clock       clock.Clock
	Redis       *rd.Client
}

// newEngine 构建 gin 引擎以及路由依赖。
func newEngine(p engineParams) (*gin.Engine, router.Deps) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(p.Log.Named("http")))
	return r, router.Deps{
		Store:       p.Store,
		Poller:      p.Poller,
		Coordinator: p.Coordinator,
		Board:       p.Board,
		Journal:     p.Journal,
		Clock:       p.Clock,
		Location:    p.Config.Location,
		Redis:       p.Redis,
		RateLimit:   p.Config.ActionRateLimit,
		RateWindow:  p.Config.ActionRateWindow,
		Log:         p.Log,
	}
}

// runPoller 随应用启动轮询；停止时丢弃在途响应。
func runPoller(lc fx.Lifecycle, p *poller.Poller) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// OnStart 的 ctx 在启动完成后即失效，轮询需要独立的生命周期
			return p.Start(context.Background())
		},
		OnStop: func(context.Context) error {
			p.Stop()
			return nil
		},
	})
}

func runHTTP(lc fx.Lifecycle, cfg config.AppConfig, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
