package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort                   = "8080"
	defaultMaxUploadBytes   int64 = 100 * 1024 * 1024 // 100MB
	defaultStorageChunkSize int64 = 1024 * 1024       // 1MB
	defaultSessionTTL             = time.Hour
	defaultSessionSweep           = 5 * time.Minute
	defaultSummaryAttempts        = 3
	defaultChunkDir               = "tmp/mediascribe"
	defaultOllamaURL              = "http://localhost:11434"
	defaultOllamaModel            = "llama3.1:8b"
)

// Config captures server runtime configuration.
type Config struct {
	Port        string
	DatabaseURL string
	APIKey      string

	TranscriberURL string
	OllamaURL      string
	OllamaModel    string

	ChunkDir         string
	MaxUploadBytes   int64
	StorageChunkSize int64
	SessionTTL       time.Duration
	SessionSweep     time.Duration
	SummaryAttempts  int
}

// Load reads environment variables into a Config structure. DATABASE_URL is
// optional; without it the server falls back to the in-memory store.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("MEDIASCRIBE_PORT", defaultPort),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		APIKey:           os.Getenv("MEDIASCRIBE_API_KEY"),
		TranscriberURL:   os.Getenv("TRANSCRIBER_URL"),
		OllamaURL:        getEnv("OLLAMA_URL", defaultOllamaURL),
		OllamaModel:      getEnv("OLLAMA_MODEL", defaultOllamaModel),
		ChunkDir:         getEnv("MEDIASCRIBE_CHUNK_DIR", defaultChunkDir),
		MaxUploadBytes:   parseInt64("MEDIASCRIBE_MAX_UPLOAD_SIZE", defaultMaxUploadBytes),
		StorageChunkSize: parseInt64("MEDIASCRIBE_STORAGE_CHUNK_SIZE", defaultStorageChunkSize),
		SessionTTL:       parseDuration("MEDIASCRIBE_SESSION_TTL", defaultSessionTTL),
		SessionSweep:     parseDuration("MEDIASCRIBE_SESSION_SWEEP", defaultSessionSweep),
		SummaryAttempts:  int(parseInt64("MEDIASCRIBE_SUMMARY_ATTEMPTS", defaultSummaryAttempts)),
	}

	if cfg.APIKey == "" {
		return nil, errors.New("MEDIASCRIBE_API_KEY is required")
	}
	if cfg.TranscriberURL == "" {
		return nil, errors.New("TRANSCRIBER_URL is required")
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.StorageChunkSize <= 0 {
		cfg.StorageChunkSize = defaultStorageChunkSize
	}
	if cfg.SummaryAttempts <= 0 {
		cfg.SummaryAttempts = defaultSummaryAttempts
	}
	if cfg.ChunkDir == "" {
		cfg.ChunkDir = defaultChunkDir
	}
	if !filepath.IsAbs(cfg.ChunkDir) {
		cfg.ChunkDir = filepath.Join(os.TempDir(), cfg.ChunkDir)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func parseInt64(key string, fallback int64) int64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return dur
}
