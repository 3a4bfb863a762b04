package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amazingchow/game-companion-gateway/internal/auth"
	"github.com/amazingchow/game-companion-gateway/internal/background"
	"github.com/amazingchow/game-companion-gateway/internal/bus"
	"github.com/amazingchow/game-companion-gateway/internal/cache"
	"github.com/amazingchow/game-companion-gateway/internal/config"
	"github.com/amazingchow/game-companion-gateway/internal/health"
	"github.com/amazingchow/game-companion-gateway/internal/httpapi"
	"github.com/amazingchow/game-companion-gateway/internal/lock"
	"github.com/amazingchow/game-companion-gateway/internal/logging"
	"github.com/amazingchow/game-companion-gateway/internal/middleware"
	"github.com/amazingchow/game-companion-gateway/internal/ratelimit"
	"github.com/amazingchow/game-companion-gateway/internal/result"
	"github.com/amazingchow/game-companion-gateway/internal/room"
	"github.com/amazingchow/game-companion-gateway/internal/sms"
	"github.com/amazingchow/game-companion-gateway/internal/store"
)

// devSMSVendor logs one-time codes instead of dispatching them through a
// carrier aggregator, and verifies them against an in-memory map keyed by
// msg_id. Swap in a real sms.Vendor implementation in production.
type devSMSVendor struct {
	codes map[string]string
}

func newDevSMSVendor() *devSMSVendor {
	return &devSMSVendor{codes: map[string]string{}}
}

func (v *devSMSVendor) Send(_ context.Context, phone, code string) (string, error) {
	msgID := phone + ":" + code
	v.codes[msgID] = code
	zap.L().Info("dev sms vendor: would send code", zap.String("phone", phone), zap.String("code", code))
	return msgID, nil
}

func (v *devSMSVendor) Verify(_ context.Context, msgID, code string) (bool, error) {
	return v.codes[msgID] == code, nil
}

func main() {
	envPaths := []string{".env", "../../.env", "../.env"}
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	development := cfg.DeployEnv != "production"
	if err := logging.Initialize(development); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	cacheSvc, err := cache.NewService(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer func() { _ = cacheSvc.Close() }()

	dbName := cfg.DeployEnv + "_game_companion"
	storeSvc, err := store.NewStore(ctx, cfg.MongoURI, dbName)
	if err != nil {
		logger.Fatal("connect mongo", zap.Error(err))
	}
	defer func() { _ = storeSvc.Close(ctx) }()
	if err := storeSvc.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure mongo indexes", zap.Error(err))
	}
	if err := runBootstrap(ctx, storeSvc); err != nil {
		logger.Fatal("bootstrap declarative definitions", zap.Error(err))
	}

	producer := bus.NewProducer(cfg.KafkaBrokers, cfg.KafkaProducerTopic, cfg.KafkaRoomEventTopic)
	defer func() { _ = producer.Close() }()

	locker := lock.New(cacheSvc.Client())

	engine := room.NewEngine(storeSvc, locker, producer)
	ingestor := result.NewIngestor(storeSvc, producer)
	guard := background.NewGuard(engine,
		time.Duration(cfg.SecsKickedFromQueue)*time.Second,
		time.Duration(cfg.SecsBattleForceEnd)*time.Second,
	)
	defer guard.Stop()

	issuer, err := newTokenIssuer(cfg)
	if err != nil {
		logger.Fatal("load session token keypair", zap.Error(err))
	}

	smsSvc := sms.NewService(cacheSvc, newDevSMSVendor(), parseDailyLimit(cfg.RateLimitSMSDaily), cfg.SMPeriodOfValiditySec)

	rl, err := ratelimit.NewRateLimiter(cfg, cacheSvc.Client())
	if err != nil {
		logger.Fatal("build rate limiter", zap.Error(err))
	}

	healthHandler := health.NewHandler(cacheSvc, storeSvc, producer)

	roomHandler := httpapi.NewRoomHandler(engine, guard)
	smsHandler := httpapi.NewSMSHandler(smsSvc, issuer)
	resultHandler := httpapi.NewResultHandler(ingestor, guard)
	passiveHandler := httpapi.NewPassiveHandler(storeSvc, func() int64 { return time.Now().UnixMilli() })

	resolveDevice := func(ctx context.Context, account string) (string, error) {
		return cacheSvc.Get(ctx, "device_id:"+account)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.TraceID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = allowedOrigins()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders,
		middleware.HeaderSecAccount, middleware.HeaderSecToken, middleware.HeaderAppVersion)
	router.Use(cors.New(corsCfg))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	public := router.Group("/api/v1")
	public.Use(rl.Global())
	{
		public.POST("/sms", smsHandler.Send)
		public.POST("/sms/verify", smsHandler.Verify)
		public.POST("/game/result", resultHandler.Callback)
	}

	protected := router.Group("/api/v1/room")
	protected.Use(rl.Global(), middleware.AppVersionGate(cfg.AppVersion, cfg.SkipAppVersionCheck),
		middleware.AuthGate(issuer, resolveDevice), rl.Rooms())
	{
		protected.POST("/enter", roomHandler.Enter)
		protected.POST("/leave", roomHandler.Leave)
		protected.POST("/queue/sit", roomHandler.Sit)
		protected.POST("/queue/stand", roomHandler.Stand)
		protected.POST("/queue/ready", roomHandler.Ready)
		protected.POST("/queue/unready", roomHandler.Unready)
		protected.POST("/battle/start", roomHandler.BattleStart)
		protected.POST("/battle/end", roomHandler.BattleEnd)
		protected.GET("/list", roomHandler.List)
		protected.POST("/chat", passiveHandler.SendChat)
		protected.GET("/chat", passiveHandler.ChatHistory)
	}

	accountGroup := router.Group("/api/v1/account")
	accountGroup.Use(rl.Global(), middleware.AppVersionGate(cfg.AppVersion, cfg.SkipAppVersionCheck),
		middleware.AuthGate(issuer, resolveDevice))
	{
		accountGroup.GET("/resolve", passiveHandler.ResolveAccount)
		accountGroup.GET("/permissions", passiveHandler.Permissions)
		accountGroup.POST("/invite/redeem", passiveHandler.RedeemInvite)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("gateway exited")
}

func newTokenIssuer(cfg *config.Config) (*auth.TokenIssuer, error) {
	privPath := getEnvOrDefault("AUTH_PRIVATE_KEY_PATH", "config/session_token_private.pem")
	pubPath := getEnvOrDefault("AUTH_PUBLIC_KEY_PATH", "config/session_token_public.pem")

	priv, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return auth.NewTokenIssuer(priv, pub, cfg.TokenValidDurationDays)
}

// bootstrapDefinitions is the on-disk shape of the declarative games/
// AI-personas/rooms definitions loaded at startup.
type bootstrapDefinitions struct {
	Games     []store.InstalledGame     `json:"games"`
	AIPlayers []store.InstalledAIPlayer `json:"ai_players"`
	Rooms     []store.RoomDefinition    `json:"rooms"`
}

// runBootstrap loads the declarative definitions pointed to by
// BOOTSTRAP_DEFINITIONS_PATH, if set, and upserts them. Deployments that
// manage installed_rooms/installed_games by hand can leave it unset.
func runBootstrap(ctx context.Context, storeSvc *store.Store) error {
	path := os.Getenv("BOOTSTRAP_DEFINITIONS_PATH")
	if path == "" {
		zap.L().Info("bootstrap definitions path not set, skipping")
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bootstrap definitions: %w", err)
	}

	var defs bootstrapDefinitions
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("parse bootstrap definitions: %w", err)
	}

	if err := room.Bootstrap(ctx, storeSvc, defs.Games, defs.AIPlayers, defs.Rooms); err != nil {
		return err
	}
	zap.L().Info("bootstrap complete",
		zap.Int("games", len(defs.Games)),
		zap.Int("ai_players", len(defs.AIPlayers)),
		zap.Int("rooms", len(defs.Rooms)))
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func allowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	return strings.Split(raw, ",")
}

// parseDailyLimit extracts the numeric prefix of a ulule/limiter-style rate
// string ("5-24H" -> 5), the format RATE_LIMIT_SMS_DAILY is expressed in.
func parseDailyLimit(rate string) int64 {
	parts := strings.SplitN(rate, "-", 2)
	n, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || n <= 0 {
		return 5
	}
	return n
}
