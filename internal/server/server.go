// Package server wires the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/config"
	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
	"github.com/mohammad-safakhou/stackpilot/internal/feeds"
	"github.com/mohammad-safakhou/stackpilot/internal/scrape"
	"github.com/mohammad-safakhou/stackpilot/internal/store"
	"github.com/mohammad-safakhou/stackpilot/internal/workflow"
	"github.com/mohammad-safakhou/stackpilot/provider"
)

const searchRefresh = 5 * time.Minute

// Handlers groups everything mounted under /api.
type Handlers struct {
	Workflows *WorkflowsHandler
	Tools     *ToolsHandler
	Posts     *PostsHandler
	Auth      *AuthHandler
	Admin     *AdminHandler
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewEcho builds the echo instance with middleware, the unified JSON error
// handler and every route.
func NewEcho(h Handlers, reg *prometheus.Registry, allowOrigins []string, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(logger))
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error {
		if h.Ready != nil {
			if err := h.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.String(http.StatusOK, "ok")
	})
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	if h.Workflows != nil {
		h.Workflows.Register(api.Group("/workflows"))
	}
	if h.Tools != nil {
		h.Tools.Register(api.Group("/tools"))
	}
	if h.Posts != nil {
		h.Posts.Register(api.Group("/posts"))
	}
	if h.Auth != nil {
		h.Auth.Register(api.Group("/auth"))
		if h.Admin != nil {
			h.Admin.Register(api.Group("/admin", RequireAuth(h.Auth.Secret)))
		}
	}
	return e
}

// errorHandler renders every error as {"error": msg}. 5xx errors are logged
// with their internal cause; the cause is never sent to the client.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Debug("request rejected", fields...)
		}
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, HTTPError{Error: msg})
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			status := v.Status
			if v.Error != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(v.Error, &he) {
					status = he.Code
				}
			}
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	})
}

// Run builds every dependency from cfg and serves the API until ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn, cfg.Storage.Postgres.Timeout)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var rdb redis.Cmdable
	if cfg.Storage.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Storage.Redis.Addr(),
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.Timeout,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		rdb = client
	}

	var accessor catalog.Accessor = catalog.NewStoreAccessor(st)
	if rdb != nil {
		accessor = catalog.NewCachedAccessor(accessor, rdb, cfg.Storage.Redis.CatalogTTL, logger.Named("catalog"))
	}
	searcher := catalog.NewSearcher(accessor, searchRefresh, logger.Named("catalog"))
	defer searcher.Close()

	llm, err := provider.NewProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}
	metrics, err := workflow.NewMetrics(reg)
	if err != nil {
		return err
	}
	svc := workflow.NewService(accessor, llm, st, workflow.Options{
		Grounding: cfg.LLM.Grounding,
		Timeout:   cfg.LLM.Timeout,
	}, metrics, logger.Named("workflow"))

	extractor, err := scrape.NewExtractor(scrape.ChromeFetcher{
		Timeout:   cfg.Scraper.Timeout,
		UserAgent: cfg.Scraper.UserAgent,
		Quality:   cfg.Scraper.Quality,
	}, llm, scrape.ExtractorOptions{Model: cfg.LLM.VisionModel, MaxChars: cfg.Scraper.MaxChars, Timeout: cfg.LLM.Timeout, Hosts: cfg.Scraper.Hosts}, reg, logger.Named("scrape"))
	if err != nil {
		return err
	}

	importer, err := feeds.NewImporter(st, feeds.ImporterOptions{
		URLs:      cfg.Feeds.URLs,
		MaxItems:  cfg.Feeds.MaxItems,
		Timeout:   cfg.Feeds.Timeout,
		UserAgent: cfg.Scraper.UserAgent,
	}, reg, logger.Named("feeds"))
	if err != nil {
		return err
	}
	sched, err := feeds.NewScheduler(importer, cfg.Feeds.Schedule, rdb, cfg.Feeds.LockTTL, logger.Named("feeds"))
	if err != nil {
		return err
	}
	if len(cfg.Feeds.URLs) > 0 {
		go sched.Start(ctx)
	}

	e := NewEcho(Handlers{
		Workflows: &WorkflowsHandler{Generator: svc, Store: st},
		Tools:     &ToolsHandler{Catalog: accessor, Searcher: searcher},
		Posts:     &PostsHandler{Store: st},
		Auth:      &AuthHandler{Users: st, Secret: []byte(cfg.Server.JWTSecret), SecureCookie: !cfg.General.Debug},
		Admin:     &AdminHandler{Scraper: extractor, Feeds: sched},
		Ready:     st.Ping,
	}, reg, cfg.Server.AllowOrigins, logger.Named("http"))
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.WriteTimeout = cfg.Server.RequestTimeout

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Address))
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
