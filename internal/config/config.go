package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Media     MediaConfig
}

type APIConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Playground      bool
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
	MaxRetry      int
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int
	MetricsAddr   string
	WebhookSecret string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DatabaseConfig selects the attachment store. An empty DSN keeps
// attachments in memory.
type DatabaseConfig struct {
	DSN string
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type MediaConfig struct {
	// UploadsBaseURL prefixes relative attachment paths. When empty the
	// object storage bucket URL is used.
	UploadsBaseURL string
	// SizesFile optionally points to a YAML image size registry.
	SizesFile      string
	MaxSrcSetWidth int
}

func Load() Config {
	return Config{
		API: APIConfig{
			Addr:            env("PERFLAB_API_ADDR", ":8080"),
			ReadTimeout:     envDuration("PERFLAB_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    envDuration("PERFLAB_API_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: envDuration("PERFLAB_API_SHUTDOWN_TIMEOUT", 10*time.Second),
			Playground:      envBool("PERFLAB_API_PLAYGROUND", true),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
			MaxRetry:      envInt("ASYNC_MAX_RETRY", 5),
		},
		Worker: WorkerConfig{
			Concurrency:   envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MetricsAddr:   env("WORKER_METRICS_ADDR", ":9091"),
			WebhookSecret: env("PERFLAB_WEBHOOK_SECRET", ""),
		},
		Storage: StorageConfig{
			Enabled:   envBool("MINIO_ENABLED", false),
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "perflab-uploads"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("PERFLAB_RATE_LIMIT_ENABLED", false),
			Capacity: envInt("PERFLAB_RATE_LIMIT_CAPACITY", 60),
			Window:   envDuration("PERFLAB_RATE_LIMIT_WINDOW", time.Minute),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Media: MediaConfig{
			UploadsBaseURL: env("PERFLAB_UPLOADS_BASE_URL", ""),
			SizesFile:      env("PERFLAB_IMAGE_SIZES_FILE", ""),
			MaxSrcSetWidth: envInt("PERFLAB_MAX_SRCSET_WIDTH", 2048),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
