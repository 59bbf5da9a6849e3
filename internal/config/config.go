package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vytor/vocabdrill/internal/logger"
)

type Config struct {
	Addr               string
	DBPath             string
	LogLevel           string
	LogColors          bool
	ExamDefaultCount   int
	RestoreWorkerCount int
	RestoreQueueSize   int
	ShutdownTimeout    time.Duration
}

// Load reads configuration from .env files and environment variables,
// applying defaults when values are missing or invalid. With no files given
// a .env in the working directory is used if present; explicitly named files
// must exist. Variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	return Config{
		Addr:               envOr("ADDR", ":8080"),
		DBPath:             envOr("DB_PATH", "file:vocabdrill.db"),
		LogLevel:           envOr("LOG_LEVEL", "INFO"),
		LogColors:          envBoolOr("LOG_COLORS", true),
		ExamDefaultCount:   envIntOr("EXAM_DEFAULT_COUNT", 20),
		RestoreWorkerCount: envIntOr("RESTORE_WORKER_COUNT", 1),
		RestoreQueueSize:   envIntOr("RESTORE_QUEUE_SIZE", 8),
		ShutdownTimeout:    time.Duration(envIntOr("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("ADDR cannot be empty"))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR, got %q", c.LogLevel))
	}
	if c.ExamDefaultCount <= 0 {
		errs = append(errs, fmt.Errorf("EXAM_DEFAULT_COUNT must be positive, got %d", c.ExamDefaultCount))
	}
	if c.RestoreWorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("RESTORE_WORKER_COUNT must be positive, got %d", c.RestoreWorkerCount))
	}
	if c.RestoreQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("RESTORE_QUEUE_SIZE must be positive, got %d", c.RestoreQueueSize))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be positive, got %v", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logger.Warn("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		logger.Warn("invalid value for %s=%q, using default %v", key, v, def)
	}
	return def
}
