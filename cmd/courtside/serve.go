package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/internal/api"
	"github.com/courtsidehq/courtside/internal/auth"
	"github.com/courtsidehq/courtside/internal/config"
	"github.com/courtsidehq/courtside/internal/cron"
	"github.com/courtsidehq/courtside/internal/groups"
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/metrics"
	"github.com/courtsidehq/courtside/internal/packs"
	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Courtside API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32, acquireWait time.Duration) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns(), s.AcquireDuration()
	})

	identityStore := identity.NewStore(pool)
	identityStore.SetSessionTTL(cfg.Auth.SessionTTL)
	grantStore := roles.NewStore(pool)
	groupStore := groups.NewStore(pool)
	packStore := packs.NewStore(pool)

	var packProvider packs.Provider = packStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		packProvider = packs.NewCache(packStore, rdb, cfg.Packs.CacheTTL, logger)
		slog.Info("pack feature cache enabled", "addr", cfg.Redis.Addr)
	}

	resolver := roles.NewResolver(grantStore, identityStore)
	userService := unified.NewService(pool, identityStore, grantStore, groupStore, resolver, packProvider, logger)
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, identityStore, userService, logger)

	sweeps := cron.NewRunner(grantStore, identityStore, m, logger)
	if err := sweeps.Start(); err != nil {
		return err
	}

	router := api.NewRouter(api.RouterDeps{
		Identity:      identityStore,
		Groups:        groupStore,
		Users:         userService,
		Resolver:      resolver,
		Authenticator: authenticator,
		Metrics:       m,
		CORSOrigins:   cfg.CORS.AllowedOrigins,
		Production:    cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sweeps.Stop()

	return srv.Shutdown(shutdownCtx)
}
