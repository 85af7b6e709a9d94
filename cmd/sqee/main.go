package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sqee/internal/codec"
	"github.com/kailas-cloud/sqee/internal/config"
	dbRedis "github.com/kailas-cloud/sqee/internal/db/redis"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	logpkg "github.com/kailas-cloud/sqee/internal/logger"
	"github.com/kailas-cloud/sqee/internal/metrics"
	collectionrepo "github.com/kailas-cloud/sqee/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/sqee/internal/repository/document"
	searchrepo "github.com/kailas-cloud/sqee/internal/repository/search"
	chiTransport "github.com/kailas-cloud/sqee/internal/transport/chi"
	"github.com/kailas-cloud/sqee/internal/usecase/cluster"
	healthuc "github.com/kailas-cloud/sqee/internal/usecase/health"
	"github.com/kailas-cloud/sqee/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(version.String(),
		zap.String("version", version.Short()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		Standalone: cfg.Database.Standalone,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Registered explicitly, no init().
	metrics.RegisterClusterMetrics()
	metrics.RegisterHTTPMetrics()

	types, err := buildTypeRegistry(cfg)
	if err != nil {
		logger.Fatal("Invalid document types", zap.Error(err))
	}
	logger.Info("Document types registered", zap.Strings("types", types.Names()))

	collRepo := collectionrepo.New(store, codec.Default)
	docRepo := documentrepo.New(store, codec.Default)
	searchRepo := searchrepo.New(store, codec.Default)

	scope := cfg.Cluster.ScopeID
	if scope == "" && cfg.Cluster.CreateScope {
		scope = cluster.NewScopeID()
		logger.Info("Generated scope id", zap.String("scope", scope))
	}

	registry, err := cluster.New(ctx, scope, cluster.Deps{
		Collections: collRepo,
		Documents:   docRepo,
		Search:      searchRepo,
		Pinger:      store,
		Types:       types,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Failed to open cluster", zap.String("scope", scope), zap.Error(err))
	}

	healthSvc := healthuc.New(store, registry, healthuc.DefaultCheckTimeout)

	server := chiTransport.NewServer(registry, healthSvc, nil, chiTransport.Limits{
		DefaultTake:  cfg.Query.DefaultTake,
		MaxTake:      cfg.Query.MaxTake,
		BucketSize:   cfg.Query.BucketSize,
		MaxBatchSize: cfg.Query.MaxBatchSize,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.String("scope", registry.ScopeID()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildTypeRegistry registers every configured document type.
func buildTypeRegistry(cfg config.Config) (*doctype.Registry, error) {
	descriptors, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}
	types, err := doctype.NewRegistry(cfg.Query.CacheSize)
	if err != nil {
		return nil, err
	}
	for _, d := range descriptors {
		if err := types.Register(d); err != nil {
			return nil, err
		}
	}
	return types, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = gojson.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
