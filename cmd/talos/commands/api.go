package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/talos/internal/agent"
	"github.com/wonny/talos/internal/api"
	"github.com/wonny/talos/internal/api/handlers"
	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/exchange/kraken"
	"github.com/wonny/talos/internal/exchange/paper"
	"github.com/wonny/talos/internal/execution"
	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/internal/market"
	"github.com/wonny/talos/internal/scheduler"
	"github.com/wonny/talos/internal/scheduler/jobs"
	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/database"
	"github.com/wonny/talos/pkg/httputil"
	"github.com/wonny/talos/pkg/logger"
	"github.com/wonny/talos/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "트레이딩 엔진 + API 서버 시작",
	Long: `트레이딩 엔진과 REST API 서버를 시작합니다.

이 명령어는:
- 마켓 데이터 피드 연결 (REST 또는 WebSocket)
- 에이전트 매니저 및 실행 엔진 구성
- HTTP API 서버 시작

Endpoints:
  GET  /health                      - Health check
  GET  /api/agents                  - 에이전트 목록
  POST /api/agents/start_all        - 전체 에이전트 시작
  POST /api/agents/stop_all         - 전체 에이전트 중지
  GET  /api/positions               - 포지션 조회
  GET  /api/pnl                     - PnL 조회
  GET  /api/trades                  - 체결 이력 조회

Example:
  go run ./cmd/talos api
  go run ./cmd/talos api --port 8080 --no-autostart`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	agentsFile  string
	noAutostart bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT env)")
	apiCmd.Flags().StringVar(&agentsFile, "agents", "agents.json", "에이전트 설정 파일 경로")
	apiCmd.Flags().BoolVar(&noAutostart, "no-autostart", false, "시작 시 enabled 에이전트 자동 기동 비활성화")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Talos Trading Engine ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
		"mode": cfg.Trading.Mode,
		"feed": cfg.Trading.FeedMode,
	}).Info("Initializing trading engine")

	// 3. Connect to database (optional; trades persist in memory without it)
	var tradeRepo *ledger.Repository
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		tradeRepo = ledger.NewRepository(db.Pool)
		log.Info("Connected to database")
	} else {
		log.Info("DATABASE_URL not set, trade persistence disabled")
	}

	// 4. Connect to Redis (optional; caching and shared rate limits)
	var redisClient *redis.Client
	var tickCache *redis.Cache
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		tickCache = redis.NewCache(redisClient, "talos")
		log.Info("Connected to Redis")
	}

	// 5. Create HTTP client
	httpClient := httputil.New(cfg, log)
	if redisClient != nil {
		limiter := redis.NewRateLimiter(redisClient, "talos")
		httpClient = httpClient.WithRateLimiter(limiter, redis.KrakenPublicRateLimit)
	}

	// 6. Create exchange clients and market data feed
	krakenClient := kraken.NewClient(cfg.Kraken, httpClient, log)
	source := kraken.NewMarketData(krakenClient)
	feed := market.NewFeed(source, 5*time.Second, tickCache, log)

	var ws *kraken.WebSocketClient
	if cfg.Trading.FeedMode == "ws" {
		ws = kraken.NewWebSocketClient(cfg.Kraken, cfg.Trading.AllowedSymbols, feed, log)
		if err := ws.Start(context.Background()); err != nil {
			return fmt.Errorf("start websocket feed: %w", err)
		}
		log.Info("WebSocket feed started")
	}

	// 7. Create order exchange
	// ⭐ SSOT: 라이브 자격 없으면 항상 페이퍼 거래소
	var exchange contracts.Exchange
	if cfg.IsLive() {
		exchange = kraken.NewExchange(krakenClient)
		log.Warn("LIVE trading mode enabled")
	} else {
		exchange = paper.New(feed, cfg.Execution.TakerFeeBps, log)
		log.Info("Paper trading mode")
	}

	// 8. Create position ledger and kill switch
	led := ledger.New(cfg.Execution.TradeHistoryCap, tradeRepo, log)
	kill := execution.NewKillSwitch()

	// 9. Create agent manager (builds bus, strategy agents, execution engine)
	mgr, err := agent.NewManager(cfg, agentsFile, feed, exchange, led, kill, log)
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}

	// 10. Create scheduler with maintenance jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewDailyResetJob(led, log)); err != nil {
		return fmt.Errorf("register daily reset job: %w", err)
	}
	if tickCache != nil {
		snap := jobs.NewPnLSnapshotJob(led, feed, tickCache, cfg.Trading.AllowedSymbols, log)
		if err := sched.AddJob(snap); err != nil {
			return fmt.Errorf("register pnl snapshot job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// 11. Create handlers and router
	agentHandler := handlers.NewAgentHandler(mgr, kill, log)
	tradingHandler := handlers.NewTradingHandler(cfg, mgr, led, feed, log)
	router := api.NewRouter(agentHandler, tradingHandler, log)

	// 12. Create server
	server := api.New(cfg, log, router)

	// 13. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// 14. Start enabled agents
	if !noAutostart {
		mgr.StartAll()
		log.Info("Agents started")
	}

	log.Info("Trading engine started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s (%s mode)\n", cfg.Port, cfg.Trading.Mode)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/agents")
	fmt.Println("  POST /api/agents/start_all")
	fmt.Println("  POST /api/agents/stop_all")
	fmt.Println("  GET  /api/positions")
	fmt.Println("  GET  /api/pnl")
	fmt.Println("  GET  /api/trades")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down engine...")

	// Stop agents first so no new orders go out during shutdown
	mgr.StopAll()
	if ws != nil {
		ws.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Engine stopped")
	return nil
}
