package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollbook/internal/attendance"
	"rollbook/internal/config"
	"rollbook/internal/httpapi"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/metrics"
	"rollbook/internal/store"
)

var logger = loggo.GetLogger("rollbook.api")

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Criticalf("loading config: %v", err)
		os.Exit(1)
	}
	if err := loggo.ConfigureLoggers(cfg.LogLevel); err != nil {
		logger.Warningf("invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Criticalf("http server failed: %v", errors.ErrorStack(err))
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()

	repo := attendance.NewRepository(db.Client, db.Dialect, cfg.Cohort)
	if err := repo.Migrate(ctx); err != nil {
		return errors.Trace(err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	// A nil *DayCache must not become a non-nil interface.
	var cache attendance.Cache
	if dc := store.NewDayCache(redisClient, "rollbook", cfg.CacheTTL); dc != nil {
		cache = dc
		logger.Infof("day cache enabled on %s", cfg.RedisAddr)
	} else {
		logger.Infof("day cache disabled (REDIS_ADDR not set)")
	}

	svc := attendance.NewService(repo, cache, metrics.NewStore(nil))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewClientLimit(cfg.RateLimitPerMin, cfg.RateLimitBurst, "/healthz", "/metrics").Handler())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		body := gin.H{"status": "ok", "db": dbHealthy}
		status := http.StatusOK
		if redisClient != nil {
			redisHealthy := redisClient.Healthy(c.Request.Context())
			body["redis"] = redisHealthy
			if !redisHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	})

	httpapi.New(svc).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("starting server on :%s (%s, batch %s / %s)",
			cfg.HTTPPort, db.Driver, cfg.Cohort.Batch, cfg.Cohort.Department)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return errors.Annotate(err, "serving http")
	case <-quit:
	}
	logger.Infof("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("server forced shutdown: %v", err)
	}

	logger.Infof("server exited")
	return nil
}
