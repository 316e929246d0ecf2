package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"lg/nutrition-api/internal/aggregate"
	"lg/nutrition-api/internal/config"
	"lg/nutrition-api/internal/ledger"
	"lg/nutrition-api/internal/logger"
	"lg/nutrition-api/internal/meals"
	"lg/nutrition-api/internal/postgres"
	"lg/nutrition-api/internal/stats"
	"lg/nutrition-api/internal/weight"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nutrition-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("db pool ready", zap.Int32("max_conns", cfg.Database.MaxConns))

	h := newHandler(pool, cfg, log)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.ContextWithFallback = true
	router.Use(requestLogger(log.Named("http")), gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("set trusted proxies: %w", err)
	}
	h.registerRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHandler wires the storage layer and services behind the HTTP handlers.
func newHandler(db postgres.DB, cfg *config.Config, log *zap.Logger) *Handler {
	tx := postgres.NewTxManager(db)
	mealRepo := postgres.NewMealRepo(db)
	profiles := postgres.NewProfileRepo(db, tx)

	cache := aggregate.New(ledger.NewReader(mealRepo), postgres.NewStatsRepo(db), tx, log, aggregate.Options{
		Timeout:      cfg.Stats.RecomputeTimeout,
		MaxRangeDays: cfg.Stats.MaxRangeDays,
		Concurrency:  cfg.Stats.RangeConcurrency,
	})

	return &Handler{
		users: postgres.NewUserRepo(db),
		stats: stats.NewService(profiles, cache, ledger.NewReader(mealRepo), nil, log, stats.Options{
			DefaultTimezone: cfg.Stats.DefaultTimezone,
			MaxRangeDays:    cfg.Stats.MaxRangeDays,
		}),
		meals: meals.NewService(mealRepo, tx, cache, profiles, nil, log, meals.Options{
			DefaultTimezone: cfg.Stats.DefaultTimezone,
		}),
		profiles: profiles,
		weight:   weight.NewService(postgres.NewWeightRepo(db), profiles, tx, nil, log, cfg.Stats.DefaultTimezone),
		clock:    clockwork.NewRealClock(),
		log:      log.Named("api"),
	}
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id := c.GetInt("user_id"); id != 0 {
			fields = append(fields, zap.Int("user_id", id))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
