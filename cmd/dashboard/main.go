package main

import (
	"order_dashboard/internal/router"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		options(),
	).Run()
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			loadConfig,
			newInstanceID,
			newLogger,
			newClock,
			newRemote,
			newStore,
			newBoard,
			newPoller,
			newRedis,
			newGuard,
			newJournal,
			newPublisher,
			newCoordinator,
			newEngine,
		),
		fx.Invoke(
			router.Setup,
			runPoller,
			runConsumer,
			runHTTP,
		),
	)
}
