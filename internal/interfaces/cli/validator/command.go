package validator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"iapgate/internal/infrastructure/auth"
	"iapgate/internal/infrastructure/metrics"
	"iapgate/internal/infrastructure/ratelimit"
	"iapgate/internal/interfaces/cli/bootstrap"
	httpRouter "iapgate/internal/interfaces/http"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validator",
		Short: "Serve the development validation endpoint",
		Long: `Answer POST /validate from the sandbox ledger: unknown receipts are
rejected, lapsed ones are inactive, the rest are active.`,
		RunE: run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
	}

	rt, err := bootstrap.NewRuntime(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	sqlDB, err := rt.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	var limiter ratelimit.RateLimiter = ratelimit.NewMemoryRateLimiter()
	if rt.Redis != nil {
		limiter = ratelimit.NewRedisRateLimiter(rt.Redis, "")
	}

	var tokens *auth.ServiceTokenService
	if cfg.Validator.AuthSecret != "" {
		tokens = auth.NewServiceTokenService(cfg.Validator.AuthSecret, auth.DefaultServiceTokenTTL)
	} else {
		log.Warnw("validation endpoint runs without authentication; set validator.auth_secret to require service tokens")
	}

	router := httpRouter.NewRouter(httpRouter.Dependencies{
		Validator: rt.Store,
		Ledger:    sqlDB,
		Metrics:   metrics.New(),
		Tokens:    tokens,
		Limiter:   limiter,
		Limits: ratelimit.Limits{
			RequestsPerMinute: cfg.Server.RateLimitPerMinute,
			RequestsPerHour:   cfg.Server.RateLimitPerHour,
		},
		Logger: log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("validation endpoint starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	log.Infow("shutting down validation endpoint...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("validation endpoint exited gracefully")
	return nil
}
