package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Poller    PollerConfig    `yaml:"poller"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	OCR       OCRConfig       `yaml:"ocr"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Ownership OwnershipConfig `yaml:"ownership"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig holds job store configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite | mongo
	DSN              string        `yaml:"dsn"`
	MongoDatabase    string        `yaml:"mongo_database"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds listener addresses
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// PollerConfig drives claiming and the worker pool
type PollerConfig struct {
	ID            string        `yaml:"id"`
	Interval      time.Duration `yaml:"interval"`
	LeaseTTL      time.Duration `yaml:"lease_ttl"`
	MaxAttempts   int           `yaml:"max_attempts"`
	WorkerThreads int           `yaml:"worker_threads"`
	QueueSize     int           `yaml:"queue_size"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
}

// PipelineConfig holds pipeline pool size and heuristic tuning
type PipelineConfig struct {
	PoolSize          int `yaml:"pool_size"`
	DomainTitleWeight int `yaml:"domain_title_weight"`
	DomainMinScore    int `yaml:"domain_min_score"`
}

// OCRConfig holds PDF text extraction configuration
type OCRConfig struct {
	Pdftotext     string        `yaml:"pdftotext"`
	Pdftoppm      string        `yaml:"pdftoppm"`
	Tesseract     string        `yaml:"tesseract"`
	TesseractLang string        `yaml:"tesseract_lang"`
	DPI           int           `yaml:"dpi"`
	MaxPages      int           `yaml:"max_pages"`
	Concurrency   int           `yaml:"concurrency"`
	OCRFallback   bool          `yaml:"ocr_fallback"`
	Timeout       time.Duration `yaml:"timeout"`
}

// IngestConfig configures the directory watcher
type IngestConfig struct {
	Dirs      []string      `yaml:"dirs"`
	UserID    string        `yaml:"user_id"`
	ProfileID string        `yaml:"profile_id"`
	Debounce  time.Duration `yaml:"debounce"`
}

// OwnershipConfig configures profile ownership lookups
type OwnershipConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// StaticOwners maps profile id to user id; used when BaseURL is empty.
	StaticOwners map[string]string `yaml:"static_owners"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in fallbacks.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MongoDatabase:   "jobcopilot",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		Poller: PollerConfig{
			Interval:      30 * time.Second,
			LeaseTTL:      300000 * time.Millisecond,
			MaxAttempts:   3,
			WorkerThreads: 4,
			QueueSize:     16,
			ReapInterval:  time.Minute,
		},
		Pipeline: PipelineConfig{
			PoolSize:          8,
			DomainTitleWeight: 2,
			DomainMinScore:    2,
		},
		OCR: OCRConfig{
			Pdftotext:     "pdftotext",
			Pdftoppm:      "pdftoppm",
			Tesseract:     "tesseract",
			TesseractLang: "eng",
			DPI:           300,
			MaxPages:      5,
			Concurrency:   2,
			Timeout:       30 * time.Second,
		},
		Ingest: IngestConfig{
			Debounce: 500 * time.Millisecond,
		},
		Ownership: OwnershipConfig{
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration once at startup: defaults, then an optional
// YAML file named by CONFIG_FILE, then environment variables (a .env file is loaded first if present).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "cannot read "+path, err)
		}
	}
	applyEnv(&cfg)
	if cfg.Poller.ID == "" {
		host, _ := os.Hostname()
		cfg.Poller.ID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MongoDatabase = getEnv("MONGO_DATABASE", c.Database.MongoDatabase)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Poller.ID = getEnv("POLLER_ID", c.Poller.ID)
	c.Poller.Interval = getEnvAsDuration("POLLER_INTERVAL", c.Poller.Interval)
	if ms := getEnvAsInt("POLLER_LOCK_TTL_MS", 0); ms > 0 {
		c.Poller.LeaseTTL = time.Duration(ms) * time.Millisecond
	}
	c.Poller.MaxAttempts = getEnvAsInt("POLLER_MAX_ATTEMPTS", c.Poller.MaxAttempts)
	c.Poller.WorkerThreads = getEnvAsInt("POLLER_WORKER_THREADS", c.Poller.WorkerThreads)
	c.Poller.QueueSize = getEnvAsInt("POLLER_QUEUE_SIZE", c.Poller.QueueSize)
	c.Poller.ReapInterval = getEnvAsDuration("POLLER_REAP_INTERVAL", c.Poller.ReapInterval)

	c.Pipeline.PoolSize = getEnvAsInt("PIPELINE_POOL_SIZE", c.Pipeline.PoolSize)
	c.Pipeline.DomainTitleWeight = getEnvAsInt("DOMAIN_TITLE_WEIGHT", c.Pipeline.DomainTitleWeight)
	c.Pipeline.DomainMinScore = getEnvAsInt("DOMAIN_MIN_SCORE", c.Pipeline.DomainMinScore)

	c.OCR.Pdftotext = getEnv("PDFTOTEXT", c.OCR.Pdftotext)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM", c.OCR.Pdftoppm)
	c.OCR.Tesseract = getEnv("TESSERACT", c.OCR.Tesseract)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.Concurrency = getEnvAsInt("OCR_CONCURRENCY", c.OCR.Concurrency)
	c.OCR.OCRFallback = getEnvAsBool("OCR_FALLBACK", c.OCR.OCRFallback)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)

	if dirs := getEnv("INGEST_DIRS", ""); dirs != "" {
		c.Ingest.Dirs = splitList(dirs)
	}
	c.Ingest.UserID = getEnv("INGEST_USER_ID", c.Ingest.UserID)
	c.Ingest.ProfileID = getEnv("INGEST_PROFILE_ID", c.Ingest.ProfileID)
	c.Ingest.Debounce = getEnvAsDuration("INGEST_DEBOUNCE", c.Ingest.Debounce)

	c.Ownership.BaseURL = getEnv("PROFILE_SERVICE_URL", c.Ownership.BaseURL)
	c.Ownership.Timeout = getEnvAsDuration("PROFILE_SERVICE_TIMEOUT", c.Ownership.Timeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "mongo":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres, sqlite or mongo", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Poller.Interval <= 0 || c.Poller.LeaseTTL <= 0 {
		return NewAppError("CONFIG_ERROR", "poller interval and lease ttl must be positive", ErrInvalidInput)
	}
	if c.Poller.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "POLLER_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.Poller.WorkerThreads < 1 || c.Poller.QueueSize < 1 {
		return NewAppError("CONFIG_ERROR", "worker threads and queue size must be positive", ErrInvalidInput)
	}
	if c.Pipeline.PoolSize < 1 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_POOL_SIZE must be positive", ErrInvalidInput)
	}
	if len(c.Ingest.Dirs) > 0 && (c.Ingest.UserID == "" || c.Ingest.ProfileID == "") {
		return NewAppError("CONFIG_ERROR", "INGEST_USER_ID and INGEST_PROFILE_ID are required with INGEST_DIRS", ErrInvalidInput)
	}
	return nil
}
