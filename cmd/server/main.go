package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quantara-ai/quantara-go/internal/agents"
	"github.com/quantara-ai/quantara-go/internal/aggregator"
	"github.com/quantara-ai/quantara-go/internal/config"
	"github.com/quantara-ai/quantara-go/internal/database"
	"github.com/quantara-ai/quantara-go/internal/execution"
	"github.com/quantara-ai/quantara-go/internal/handlers"
	"github.com/quantara-ai/quantara-go/internal/inference"
	"github.com/quantara-ai/quantara-go/internal/logging"
	"github.com/quantara-ai/quantara-go/internal/middleware"
	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/monitoring"
	"github.com/quantara-ai/quantara-go/internal/notify"
	"github.com/quantara-ai/quantara-go/internal/orchestrator"
	"github.com/quantara-ai/quantara-go/internal/risk"
	"github.com/quantara-ai/quantara-go/internal/storage"
	"github.com/quantara-ai/quantara-go/internal/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:   "quantara",
		Short: "Multi-agent financial decision pipeline",
	}

	root.AddCommand(serveCmd(), cycleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "quantara: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server the external scheduler triggers cycles against",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func cycleCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one decision cycle against synthetic data and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleOnce(userID)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "local", "user to run the cycle for")
	return cmd
}

func runServe() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Environment, cfg.LogLevel)

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	store := storage.NewPostgresStore(db.Pool, logger)

	inferenceClient := inference.NewClient(
		cfg.Inference.ServiceURL,
		time.Duration(cfg.Inference.Timeout)*time.Second,
		logger,
	)

	orch := buildOrchestrator(cfg, buildDeps(cfg, logger, store, redis, inferenceClient, nil))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	handler := handlers.NewPipelineHandler(orch, store, db, redis, logger)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func runCycleOnce(userID string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Environment, cfg.LogLevel)

	provider := &orchestrator.StaticDataProvider{
		Snap: agents.MarketSnapshot{
			Symbol: cfg.Orchestrator.Symbol,
			Bars:   syntheticBars(220),
		},
		Stats: models.TradeStats{
			TotalTrades: 120,
			Wins:        66,
			Losses:      54,
			AvgWin:      140,
			AvgLoss:     -95,
		},
	}

	orch := buildOrchestrator(cfg, buildDeps(cfg, logger, storage.NewMemoryStore(), nil, nil, provider))

	portfolio := models.PortfolioState{
		UserID:       userID,
		Value:        decimal.NewFromInt(100000),
		ReturnSeries: []float64{0.004, -0.002, 0.006, -0.001, 0.003},
		EquityCurve:  []float64{100000, 100400, 100200, 100800, 100700, 101000},
	}

	summary := orch.RunCycle(context.Background(), userID, portfolio)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func buildDeps(
	cfg *config.Config,
	logger *logrus.Logger,
	store storage.Store,
	redis *database.RedisClient,
	inferenceClient *inference.Client,
	provider orchestrator.DataProvider,
) orchestrator.Deps {
	registry := agents.NewRegistry()
	registry.Register(agents.NewMomentumAgent(), 0.55)
	registry.Register(agents.NewMeanReversionAgent(), 0.55)
	registry.Register(agents.NewArbitrageAgent(), 0.62)
	registry.Register(agents.NewPairsTradingAgent(), 0.58)
	registry.Register(agents.NewValueAgent(), 0.52)
	registry.Register(agents.NewMLPredictorAgent(inferenceClient, logger), 0.50)

	var locks orchestrator.Locker = orchestrator.NewMemoryLocker()
	if redis != nil {
		locks = redis
	}
	if provider == nil {
		logger.Warn("No market data provider configured; cycle triggers must carry market data or every agent will hold")
		provider = &orchestrator.StaticDataProvider{}
	}

	var notifier notify.Notifier
	if tg := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger); tg != nil {
		notifier = tg
	}

	return orchestrator.Deps{
		Registry:   registry,
		Aggregator: aggregator.New(logger),
		Sizer:      risk.NewSizer(logger),
		Gate:       risk.NewGate(logger),
		Drawdown:   risk.NewDrawdownMonitor(cfg.Risk.MaxDrawdownPct, logger),
		Emergency:  risk.NewEmergencyManager(logger),
		Monitor:    monitoring.NewMonitor(cfg.Risk.RiskFreeRate, logger),
		Store:      store,
		Executor:   execution.NewMockExecutor(logger),
		Data:       provider,
		Locks:      locks,
		Notifier:   notifier,
		Logger:     logger,
	}
}

func buildOrchestrator(cfg *config.Config, deps orchestrator.Deps) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Config{
		Symbol:       cfg.Orchestrator.Symbol,
		AgentTimeout: config.Duration(cfg.Orchestrator.AgentTimeout),
		LockTTL:      config.Duration(cfg.Orchestrator.LockTTL),
		JWTSecret:    cfg.Security.JWTSecret,
	}, deps)
}

// syntheticBars builds a gently trending random-walk-free series so the
// one-shot mode exercises the long-window agents deterministically.
func syntheticBars(n int) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	base := 50000.0
	start := time.Now().UTC().Add(-time.Duration(n) * time.Hour)
	for i := range bars {
		drift := float64(i) * 12
		wave := 180 * math.Sin(float64(i)/12)
		price := base + drift + wave
		bars[i] = models.PriceBar{
			Open:      price - 15,
			High:      price + 60,
			Low:       price - 70,
			Close:     price,
			Volume:    1000 + 40*math.Abs(wave)/10,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return bars
}
