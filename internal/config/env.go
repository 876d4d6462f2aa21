package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// ServerConfig defines the HTTP service surface.
type ServerConfig struct {
	Port          string
	UploadDir     string
	ResultDir     string
	MaxUploadMB   int64
	JobTTL        time.Duration
	StuckJobAfter time.Duration
}

// StorageConfig defines S3 connectivity and at-rest encryption.
type StorageConfig struct {
	Bucket          string
	ResultPrefix    string
	EncryptOutputs  bool
	EncryptPassword string
}

// WorkerConfig bounds the service job consumers.
type WorkerConfig struct {
	Concurrency int
	JobTimeout  time.Duration
}

// Config is the top-level service configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Queue   QueueConfig
	Server  ServerConfig
	Storage StorageConfig
	Worker  WorkerConfig
	Run     RunConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/scanprep.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_scanprep",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:scanprep"),
		Group:        getEnv("QUEUE_GROUP", "workers:scanprep"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	cfg.Server = ServerConfig{
		Port:          getEnv("PORT", "8080"),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		ResultDir:     getEnv("RESULT_DIR", "results"),
		MaxUploadMB:   int64(parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64)),
		JobTTL:        parseDuration(getEnv("JOB_TTL", "168h"), 168*time.Hour),
		StuckJobAfter: parseDuration(getEnv("STUCK_JOB_AFTER", "15m"), 15*time.Minute),
	}

	cfg.Storage = StorageConfig{
		Bucket:          getEnv("AWS_S3_BUCKET", ""),
		ResultPrefix:    getEnv("S3_RESULT_PREFIX", "scanprep/results"),
		EncryptOutputs:  parseBool(getEnv("ENCRYPT_OUTPUTS", "0")),
		EncryptPassword: getEnv("ENCRYPT_PASSWORD", ""),
	}

	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
		JobTimeout:  parseDuration(getEnv("JOB_TIMEOUT", "10m"), 10*time.Minute),
	}

	cfg.Run = DefaultRun()
	cfg.Run.BlankRemoval = parseBool(getEnv("BLANK_REMOVAL", "true"))
	cfg.Run.PageSeparation = parseBool(getEnv("PAGE_SEPARATION", "true"))
	cfg.Run.BlankThreshold = parseFloat(getEnv("BLANK_THRESHOLD", ""), DefaultBlankThreshold)
	cfg.Run.NoTextBlankThreshold = parseFloat(getEnv("NO_TEXT_BLANK_THRESHOLD", ""), DefaultNoTextBlankThreshold)
	cfg.Run.RenderDPI = parseInt(getEnv("RENDER_DPI", ""), cfg.Run.RenderDPI)
	cfg.Run.MarkerPayload = getEnv("MARKER_PAYLOAD", cfg.Run.MarkerPayload)
	cfg.Run.Workers = parseInt(getEnv("PIPELINE_WORKERS", "0"), 0)

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
