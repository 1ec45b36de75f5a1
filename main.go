package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopbidgo/internal/config"
	"shopbidgo/internal/database/db_client"
	"shopbidgo/internal/downstream"
	"shopbidgo/internal/eventjournal"
	"shopbidgo/internal/events"
	"shopbidgo/internal/http/http_server"
	"shopbidgo/internal/redis/redis_client"
	"shopbidgo/internal/redis/watcher/auctionwatcher"
	"shopbidgo/internal/scheduler"
	"shopbidgo/internal/services/engine"
	"shopbidgo/internal/store"
	"shopbidgo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	pgStore := store.NewPGStore(pgDb)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Winner hand-off: NATS when configured, log-only otherwise
	var notifier downstream.WinnerNotifier = downstream.LogNotifier{}
	if cfg.NatsURL != "" {
		nc, err := downstream.NewNATSNotifier(cfg.NatsURL)
		if err != nil {
			Log.Fatal("nats-connect", zap.Error(err))
		}
		defer nc.Close()
		notifier = nc
	}
	dispatcher := downstream.NewDispatcher(notifier, downstream.LogRestrictor{}, 0, 0)

	// 6. Bidding engine on the versioned store
	eng := engine.NewAuctionEngine(
		pgStore,
		events.NewRedisBroadcaster(redisClient),
		auctionwatcher.NewTimer(redisClient),
		dispatcher,
		engine.Config{
			MinIncrement:  decimal.NewFromFloat(cfg.BidMinIncrement),
			RetryAttempts: cfg.WriteRetryAttempts,
		},
	)

	// 7. Background: key-expiry watcher ends auctions on the deadline
	go auctionwatcher.Run(ctx, redisClient, eng)

	// 8. Background: deadline sweep + stream-to-journal tail
	scheduler.New(pgStore, eng, time.Duration(cfg.TickIntervalSeconds)*time.Second).Run(ctx)
	eventjournal.Run(ctx, redisClient, pgStore)

	// 9. WebSockets hub + per-room Redis fan-in
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, eng)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, eng, pgStore)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
