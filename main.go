package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"geminichat/internal/api"
	"geminichat/internal/auth"
	"geminichat/internal/config"
	"geminichat/internal/logging"
	"geminichat/internal/redis"
	"geminichat/internal/service/account"
	"geminichat/internal/service/ai"
	"geminichat/internal/storage"
	"geminichat/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("load .env")
	}

	cfg, err := config.Load(os.Getenv("GEMINICHAT_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbType := cfg.BasicConfig.Database
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(ctx, dbType, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", dbType).Msg("open database")
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db, dbType); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Str("addr", redis.Addr(cfg.Redis)).Msg("connect redis")
		}
		defer rdb.Close()
	}

	accounts := account.NewService(db, cfg.Auth.MinPasswordLength)
	if cfg.Auth.DemoEmail != "" {
		if _, err := accounts.EnsureDemoUser(ctx, cfg.Auth.DemoEmail, cfg.Auth.DemoPassword, cfg.Auth.DemoName); err != nil {
			log.Fatal().Err(err).Msg("seed demo user")
		}
	}

	gateway, err := ai.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Chat.Provider).Msg("init responder")
	}

	conversations := worker.NewManager(gateway,
		worker.WithIdleTTL(cfg.Chat.IdleTTL),
		worker.WithRedis(rdb),
	)
	conversations.Start(ctx)
	defer conversations.Close()

	authService := auth.NewService(db, rdb, cfg.Auth.TokenTTL)
	go purgeTokens(ctx, authService)
	limiter := auth.NewLoginLimiter(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst)
	defer limiter.Shutdown()

	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(accounts, authService, conversations, limiter).RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		log.Info().Str("addr", addr).Str("provider", cfg.Chat.Provider).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func purgeTokens(ctx context.Context, svc *auth.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("purge expired tokens")
				continue
			}
			if n > 0 {
				log.Info().Int64("count", n).Msg("purged expired tokens")
			}
		}
	}
}
