package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/ferelith/alarmroom/internal/application"
	"github.com/ferelith/alarmroom/internal/infrastructure/configs"
	"github.com/ferelith/alarmroom/internal/infrastructure/ratelimiter"
	"github.com/ferelith/alarmroom/internal/infrastructure/repository"
	"github.com/ferelith/alarmroom/internal/infrastructure/scheduler"
	"github.com/ferelith/alarmroom/internal/infrastructure/tracing"
	"github.com/ferelith/alarmroom/internal/infrastructure/ws"
	"github.com/ferelith/alarmroom/internal/presentation/api"
	"github.com/ferelith/alarmroom/internal/presentation/handler/health"
	"github.com/ferelith/alarmroom/internal/presentation/handler/rooms"
	"go.uber.org/zap"
)

func main() {
	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	shutdownTracer, err := tracing.InitTracer(tracing.NewDefaultConfig("alarmroom"))
	if err != nil {
		logger.Warnw("tracing disabled", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := repository.NewRoomRegistry(cfg.Room.MaxMembers)
	processor := application.NewProcessor(registry, logger)

	core := ws.NewCore(processor, logger)
	go core.Run(ctx)

	alarmScheduler := scheduler.NewAlarmScheduler(core, cfg.Scheduler.Interval, logger)
	go alarmScheduler.Start(ctx)

	roomHandler := rooms.NewHandler(core, cfg.HTTP.AllowedOrigins, logger)
	healthHandler := health.NewHandler()
	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	defer rateLimiter.Close()

	app := api.NewApplication(*cfg, *roomHandler, *healthHandler, logger, rateLimiter)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("rooms", expvar.Func(func() any {
		return registry.Len()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}
