package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
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

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// MergeConfig controls the planner and its temp files.
type MergeConfig struct {
	TempDir       string
	Cleanup       bool
	MaxUploadMB   int
	TempMaxAge    time.Duration
	SweepInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxPages bounds the pages a single selector may expand to.
	MaxPages int
	// RemoteFetch allows the HTTP service to download http(s) url sources.
	RemoteFetch bool
	// RemoteHosts, when non-empty, lists the hosts url sources may name.
	RemoteHosts []string
}

// StorageConfig configures the optional S3 backend for s3:// locators.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether an S3 client should be created.
func (s StorageConfig) Enabled() bool { return s.Region != "" || s.Endpoint != "" || s.Bucket != "" }

// ResultsConfig configures the redis result store. An empty RedisURL disables it.
type ResultsConfig struct {
	RedisURL string
	TTL      time.Duration
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Merge   MergeConfig
	Storage StorageConfig
	Results ResultsConfig
	Server  ServerConfig
}

// Load reads a .env file when present and returns FromEnv.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfmerge.log"),
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
		Dataset:       baseDataset + "_pdfmerge",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Merge = MergeConfig{
		TempDir:       getEnv("PDFMERGE_TEMP_DIR", os.TempDir()),
		Cleanup:       parseBool(getEnv("PDFMERGE_CLEANUP", "true")),
		MaxUploadMB:   parseInt(getEnv("PDFMERGE_MAX_UPLOAD_MB", "64"), 64),
		TempMaxAge:    parseDuration(getEnv("PDFMERGE_TEMP_MAX_AGE", "1h"), time.Hour),
		SweepInterval: parseDuration(getEnv("PDFMERGE_SWEEP_INTERVAL", "10m"), 10*time.Minute),
		HTTPTimeout:   parseDuration(getEnv("PDFMERGE_HTTP_TIMEOUT", "30s"), 30*time.Second),
		MaxPages:      parseInt(getEnv("PDFMERGE_MAX_PAGES", "10000"), 10000),
		RemoteFetch:   parseBool(getEnv("PDFMERGE_REMOTE_FETCH", "true")),
		RemoteHosts:   parseList(getEnv("PDFMERGE_REMOTE_HOSTS", "")),
	}

	cfg.Storage = StorageConfig{
		Bucket:          getEnv("AWS_S3_BUCKET", ""),
		Region:          getEnv("AWS_REGION", ""),
		Endpoint:        getEnv("AWS_ENDPOINT_URL", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	cfg.Results = ResultsConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("RESULT_TTL", "1h"), time.Hour),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

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

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
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
