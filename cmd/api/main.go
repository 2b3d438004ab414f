package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/perflab/internal/api"
	"github.com/dunamismax/perflab/internal/config"
	"github.com/dunamismax/perflab/internal/graph"
	"github.com/dunamismax/perflab/internal/queue"
	"github.com/dunamismax/perflab/internal/ratelimit"
	"github.com/dunamismax/perflab/internal/srcset"
	"github.com/dunamismax/perflab/internal/storage"
	"github.com/dunamismax/perflab/internal/store"
	"github.com/dunamismax/perflab/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

const fallbackUploadsBaseURL = "http://localhost:8080/uploads"

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "perflab-api",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	sizes, err := srcset.LoadRegistryOrDefault(cfg.Media.SizesFile)
	if err != nil {
		logger.Fatalf("load image sizes: %v", err)
	}

	attachments, closeStore := openAttachmentStore(ctx, cfg.Database, logger)
	defer closeStore()

	baseURL := uploadsBaseURL(cfg, logger)
	calc := srcset.NewCalculator(
		attachments,
		sizes,
		baseURL,
		srcset.WithMaxWidth(cfg.Media.MaxSrcSetWidth),
		srcset.WithTracer(otel.Tracer("perflab/srcset")),
	)

	schema, err := graph.NewSchema(graph.Dependencies{
		Store:     attachments,
		SrcSets:   calc,
		URLs:      calc.AttachmentURL,
		SizeNames: sizes.Names(),
	})
	if err != nil {
		logger.Fatalf("build graphql schema: %v", err)
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name, cfg.Queue.MaxRetry)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, ratelimit.DefaultKeyPrefix)
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		limiter = bucket
		logger.Printf("rate limiting enabled capacity=%d window=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window)
	}

	app, err := api.NewServer(logger, api.Options{
		Executor:    graph.NewExecutor(schema),
		Queue:       queueClient,
		RateLimiter: limiter,
		Tracer:      otel.Tracer("perflab/api"),
		Playground:  cfg.API.Playground,
	})
	if err != nil {
		logger.Fatalf("api setup failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s uploads=%s sizes=%d", cfg.API.Addr, baseURL, len(sizes.Names()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func openAttachmentStore(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (store.AttachmentStore, func()) {
	if cfg.DSN == "" {
		logger.Printf("POSTGRES_DSN not set, keeping attachments in memory")
		return store.NewMemoryAttachmentStore(), func() {}
	}

	pg, err := store.NewPostgresAttachmentStore(ctx, cfg.DSN)
	if err != nil {
		logger.Fatalf("postgres setup failed: %v", err)
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Printf("postgres close error: %v", err)
		}
	}
}

// uploadsBaseURL prefers the configured URL, then the object storage
// bucket URL.
func uploadsBaseURL(cfg config.Config, logger *log.Logger) string {
	if cfg.Media.UploadsBaseURL != "" {
		return cfg.Media.UploadsBaseURL
	}
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatalf("storage setup failed: %v", err)
		}
		return client.BaseURL()
	}
	logger.Printf("PERFLAB_UPLOADS_BASE_URL not set, using %s", fallbackUploadsBaseURL)
	return fallbackUploadsBaseURL
}
