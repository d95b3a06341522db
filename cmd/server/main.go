package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/arena-shooter/internal/api"
	"github.com/annel0/arena-shooter/internal/auth"
	"github.com/annel0/arena-shooter/internal/broadcast"
	"github.com/annel0/arena-shooter/internal/config"
	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/leaderboard"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/annel0/arena-shooter/internal/network"
	"github.com/annel0/arena-shooter/internal/observability"
	"github.com/annel0/arena-shooter/internal/session"
	"github.com/annel0/arena-shooter/internal/supervisor"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $ARENA_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.SetLogDir(cfg.Logging.Dir)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.GetLoggerManager().SetConsoleLevel(level)

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	if err != nil {
		logging.Error("❌ Сервер завершился с ошибкой: %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
	logging.CloseDefaultLogger()
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Info("🎮 Запуск сервера арены")

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.Observability())
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Остановка телеметрии: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus, err := buildEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	board, closeBoard, err := buildLeaderboard(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeBoard()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("журнал событий: %w", err)
	}
	if _, err := leaderboard.Listen(ctx, bus, board); err != nil {
		return fmt.Errorf("подписка таблицы лидеров: %w", err)
	}

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tuning := cfg.Game.Tuning()
	engine, err := game.NewEngine(game.Options{
		Tuning:    tuning,
		Rand:      rand.New(rand.NewSource(seed)),
		Publisher: bus,
		Metrics:   game.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	resolver, err := buildResolver(cfg.Auth)
	if err != nil {
		return err
	}

	registry := session.NewRegistry(engine)
	hub := network.NewHub(
		network.NewGameHandler(engine, registry),
		resolver,
		network.HubConfig{AllowedOrigins: cfg.Server.AllowedOrigins},
		reg,
	)
	scheduler := broadcast.NewScheduler(engine, hub, tuning.ReportPeriod(), reg)
	exporter := eventbus.NewMetricsExporter(bus, reg, 5*time.Second)

	rest := api.NewRestServer(api.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Server.GetHTTPPort()),
		Arena:      engine,
		Hub:        hub,
		Board:      board,
		Resolver:   resolver,
		Registerer: reg,
		Gatherer:   reg,
	})

	policy := cfg.Supervisor.Policy()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervisor.Run(gctx, "simulation", policy, engine.Run)
	})
	g.Go(func() error {
		return supervisor.Run(gctx, "broadcast", policy, scheduler.Run)
	})
	g.Go(func() error {
		return exporter.Run(gctx)
	})
	g.Go(func() error {
		defer hub.Close()
		return rest.Run(gctx, cfg.Server.ShutdownTimeout)
	})

	logging.Info("✅ Все сервисы запущены: http://localhost:%d (ws: /ws, метрики: /metrics)", cfg.Server.GetHTTPPort())
	return g.Wait()
}

// buildEventBus без URL события живут в памяти процесса.
func buildEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий: в памяти")
		return eventbus.NewMemoryBus(cfg.BufferSize), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.JetStream())
	if err != nil {
		return nil, fmt.Errorf("jetstream %s: %w", cfg.URL, err)
	}
	logging.Info("📨 Шина событий: JetStream %s", cfg.URL)
	return bus, nil
}

func buildLeaderboard(ctx context.Context, cfg config.RedisConfig) (leaderboard.Board, func(), error) {
	if cfg.Addr == "" {
		logging.Info("🏆 Таблица лидеров: в памяти")
		return leaderboard.NewMemoryBoard(), func() {}, nil
	}
	board, err := leaderboard.NewRedisBoard(ctx, cfg.Leaderboard())
	if err != nil {
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	logging.Info("🏆 Таблица лидеров: Redis %s", cfg.Addr)
	return board, func() { _ = board.Close() }, nil
}

func buildResolver(cfg config.AuthConfig) (*auth.Resolver, error) {
	secret := cfg.Secret()
	if secret == "" {
		logging.Warn("🔓 JWT не настроен: вход только по имени")
		return auth.NewResolver(nil, cfg.AllowAnonymous), nil
	}
	issuer, err := auth.NewTokenIssuer([]byte(secret), cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return auth.NewResolver(issuer, cfg.AllowAnonymous), nil
}
