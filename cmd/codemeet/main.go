package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/codemeet/api"
	"github.com/Aidin1998/codemeet/internal/config"
	"github.com/Aidin1998/codemeet/internal/database"
	"github.com/Aidin1998/codemeet/internal/matching"
	"github.com/Aidin1998/codemeet/internal/notification"
	"github.com/Aidin1998/codemeet/internal/opportunity"
	"github.com/Aidin1998/codemeet/internal/persistence"
	"github.com/Aidin1998/codemeet/pkg/logger"
	"github.com/Aidin1998/codemeet/pkg/telemetry"
)

// ledger is what both the scheduler and the HTTP layer need from a backend.
type ledger interface {
	matching.OpportunityGate
	api.Opportunities
}

// matchStore persists matches and serves history reads.
type matchStore interface {
	matching.ScopeFactory
	api.MatchHistory
}

type gormMatchStore struct {
	*persistence.GormScopeFactory
	*persistence.GormMatchRepository
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	bootLogger, err := logger.NewLogger(envOr("CODEMEET_LOG_LEVEL", "info"), envOr("CODEMEET_LOG_FORMAT", "json"))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	cfg, err := config.Load(*configPath, bootLogger)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLogger.Fatal("Failed to create logger", zap.Error(err))
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "codemeet",
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zapLogger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	var db *gorm.DB
	if cfg.Opportunity.Backend == "gorm" || cfg.Persistence.Backend == "gorm" {
		db, err = database.Open(database.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			LogLevel:        cfg.Database.LogLevel,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)
		go database.NewPoolMonitor(db, cfg.Database.Driver, 15*time.Second, zapLogger).Start(ctx)
	}

	gate, err := newLedger(ctx, cfg, db, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to set up opportunity ledger", zap.Error(err))
	}
	matches, err := newMatchStore(cfg, db, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to set up match persistence", zap.Error(err))
	}

	// Notification sinks
	sinks := notification.Fanout{notification.NewLogNotifier(zapLogger)}
	var hub *notification.Hub
	if cfg.Notification.WebSocket.Enabled {
		hub = notification.NewHub(cfg.Notification.WebSocket.Shards, zapLogger)
		go hub.StartSweeper(ctx, time.Minute, notification.PendingTTL)
		sinks = append(sinks, notification.NewHubNotifier(hub, zapLogger))
	}
	var events matching.EventPublisher
	if cfg.Notification.Kafka.Enabled {
		kcfg := notification.DefaultKafkaConfig()
		kcfg.Brokers = cfg.Notification.Kafka.Brokers
		kcfg.NotificationsTopic = cfg.Notification.Kafka.Topic
		kcfg.EventsTopic = cfg.Notification.Kafka.EventsTopic
		kcfg.Compression = cfg.Notification.Kafka.Compression
		kafkaNotifier := notification.NewKafkaNotifier(kcfg, zapLogger)
		defer kafkaNotifier.Close()
		sinks = append(sinks, kafkaNotifier)
		events = kafkaNotifier
	}

	store := matching.NewQueueStore(nil)
	var rnd matching.RandomSource
	if seed := cfg.Matching.RandomSeed; seed != 0 {
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	scheduler, err := matching.NewScheduler(matching.SchedulerOptions{
		Store:    store,
		Engine:   matching.NewEngine(rnd, zapLogger),
		Gate:     gate,
		Scopes:   matches,
		Factory:  matching.NewMatchFactory(cfg.Resources.DocumentURLTemplate, cfg.Resources.VideoURLTemplate),
		Notifier: sinks,
		Events:   events,
		Interval: cfg.Matching.Interval,
		Logger:   zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create matching scheduler", zap.Error(err))
	}

	opts := api.Options{
		Queue:          matching.NewQueueService(store, gate, zapLogger),
		History:        matches,
		Opportunities:  gate,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         zapLogger,
	}
	if hub != nil {
		opts.Sockets = hub
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(ctx)
	}()

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("API server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		zapLogger.Warn("Matching scheduler did not stop before the shutdown deadline")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLogger.Warn("Failed to flush traces", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}

func newLedger(ctx context.Context, cfg *config.Config, db *gorm.DB, zapLogger *zap.Logger) (ledger, error) {
	switch cfg.Opportunity.Backend {
	case "redis":
		client, err := database.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return opportunity.NewRedisLedger(client, zapLogger, cfg.Redis.KeyPrefix, cfg.Opportunity.InitialBalance), nil
	case "memory":
		return opportunity.NewMemoryLedger(cfg.Opportunity.InitialBalance), nil
	default:
		l := opportunity.NewGormLedger(db, zapLogger, cfg.Opportunity.InitialBalance)
		if err := l.Migrate(); err != nil {
			return nil, err
		}
		return l, nil
	}
}

func newMatchStore(cfg *config.Config, db *gorm.DB, zapLogger *zap.Logger) (matchStore, error) {
	if cfg.Persistence.Backend == "memory" {
		return persistence.NewMemoryStore(), nil
	}
	repo := persistence.NewGormMatchRepository(db, zapLogger)
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return gormMatchStore{
		GormScopeFactory:    persistence.NewGormScopeFactory(db, zapLogger),
		GormMatchRepository: repo,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
