package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/spf13/cobra"

	"github.com/sessionkit/auth-api/internal/hasher"
	"github.com/sessionkit/auth-api/internal/ratelimit"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/storage/postgres"
	"github.com/sessionkit/auth-api/internal/token"
	httptransport "github.com/sessionkit/auth-api/internal/transport/http"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		log.Info("starting application", "env", cfg.Env)

		// Корневой контекст по сигналам.
		rootCtx, rootCancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer rootCancel()

		if migrateOnStart || cfg.DB.Migrate {
			migCtx, migCancel := context.WithTimeout(rootCtx, time.Minute)
			err := postgres.Migrate(migCtx, cfg.DB.DatabaseURL)
			migCancel()
			if err != nil {
				log.Error("migrate_failed", slog.String("err", err.Error()))
				return err
			}
			log.Info("migrate_done")
		}

		// Подключение к БД c таймаутом.
		dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
		str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
		dbCancel()
		if err != nil {
			log.Error("postgres_connect_failed", slog.String("err", err.Error()))
			return err
		}
		defer str.Close()
		log.Info("postgres_connected")

		txm, err := manager.New(trmpgx.NewDefaultFactory(str.Pool()))
		if err != nil {
			log.Error("tx_manager_init_failed", slog.String("err", err.Error()))
			return err
		}

		// Redis для счётчиков rate limit, fail-fast на старте.
		redisCtx, redisCancel := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err := ratelimit.Connect(redisCtx, cfg.Redis.RedisURL)
		redisCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			return err
		}
		defer rdb.Close()
		log.Info("redis_connected")

		h := hasher.New(hasher.Params{
			Memory:      cfg.Hasher.Memory,
			Iterations:  cfg.Hasher.Iterations,
			Parallelism: cfg.Hasher.Parallelism,
			SaltLength:  cfg.Hasher.SaltLength,
			KeyLength:   cfg.Hasher.KeyLength,
		})
		svc := service.New(str, h, token.NewSigner(cfg.Auth), txm)
		log.Info("service_initialized")

		var ready atomic.Bool

		router := httptransport.NewRouter(svc, ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb, "")), httptransport.Options{
			Logger:         log,
			Timeout:        cfg.Timeouts.Service,
			BasePath:       cfg.HTTP.BasePath,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			TrustProxy:     cfg.HTTP.TrustProxy,
			SecureCookies:  cfg.IsProd(),
			RateLimit:      cfg.RateLimit,
			Ready:          ready.Load,
		})

		httpAddr := cfg.HTTP.Addr()
		httpSrv := &http.Server{
			Addr:              httpAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Фоновая очистка просроченных refresh-хэшей.
		startRefreshJanitor(rootCtx, svc, log, cfg.Auth.RefreshJanitorPeriod)

		serveErrCh := make(chan error, 1)
		go func() {
			log.Info("http_listen_start", slog.String("addr", httpAddr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrCh <- err
			}
			close(serveErrCh)
		}()

		ready.Store(true)

		// Ожидание сигнала завершения или фатальной ошибки сервера.
		var serveErr error
		select {
		case <-rootCtx.Done():
			log.Info("shutdown_requested")
		case serveErr = <-serveErrCh:
			if serveErr != nil {
				log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
			}
		}

		ready.Store(false)

		// Graceful stop с таймаутом.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http_force_stop", slog.String("err", err.Error()))
			_ = httpSrv.Close()
		}

		log.Info("service_stopped")
		return serveErr
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply embedded migrations before serving")
}

// sessionJanitor — операция сервиса, которую периодически вызывает janitor.
type sessionJanitor interface {
	ClearExpiredSessions(ctx context.Context) (int64, error)
}

// startRefreshJanitor запускает фоновую задачу, которая периодически
// удаляет просроченные хэши refresh-токенов.
func startRefreshJanitor(ctx context.Context, j sessionJanitor, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := j.ClearExpiredSessions(ctx)
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("refresh_janitor_cleared", slog.Int64("count", n))
				}
			}
		}
	}()
}
