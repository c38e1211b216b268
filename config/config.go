package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the file read when no path is given.
const ConfigPath = "readingroom.yaml"

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIBaseURL        string `yaml:"apiBaseURL"`
	LogLevel          string `yaml:"logLevel"`
	SessionBackend    string `yaml:"sessionBackend"`
	SessionPath       string `yaml:"sessionPath"`
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	RedisDB           int    `yaml:"redisDB"`
	RedisPrefix       string `yaml:"redisPrefix"`
	ReportPath        string `yaml:"reportPath"`
	ReportTitle       string `yaml:"reportTitle"`
	ReportRowsPerPage int    `yaml:"reportRowsPerPage"`
	BorrowLinkBase    string `yaml:"borrowLinkBase"`
	QRDir             string `yaml:"qrDir"`
	HTTPTimeoutSecs   int    `yaml:"httpTimeoutSeconds"`

	Dev DevConfig `yaml:"dev"`
}

// DevConfig configures the local development backend.
type DevConfig struct {
	Port          string `yaml:"port"`
	JWTSecret     string `yaml:"jwtSecret"`
	AdminUsername string `yaml:"adminUsername"`
	AdminPassword string `yaml:"adminPassword"`
	AccessTTLMins int    `yaml:"accessTtlMinutes"`
}

// Default returns the configuration used when no file is present.
func Default() FileConfig {
	return FileConfig{
		APIBaseURL:        "http://localhost:8000/api/",
		LogLevel:          "warn",
		SessionBackend:    BackendSQLite,
		SessionPath:       defaultSessionPath(),
		RedisAddr:         "localhost:6379",
		RedisPrefix:       "readingroom:session:",
		ReportPath:        "report.pdf",
		ReportTitle:       "Reading Room Report",
		ReportRowsPerPage: 25,
		BorrowLinkBase:    "http://localhost:3000",
		QRDir:             ".",
		HTTPTimeoutSecs:   30,
		Dev: DevConfig{
			Port:          "8000",
			JWTSecret:     "readingroom-dev-secret",
			AdminUsername: "admin",
			AdminPassword: "admin",
			AccessTTLMins: 60,
		},
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".readingroom", "session.db")
	}
	return filepath.Join(home, ".readingroom", "session.db")
}

// Load reads .env (if any), then the YAML file at path (defaults to
// readingroom.yaml; a missing default file is not an error), then applies
// READINGROOM_* environment overrides and validates the result.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = ConfigPath
		if v := os.Getenv("READINGROOM_CONFIG"); v != "" {
			path, explicit = v, true
		}
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	str := map[string]*string{
		"READINGROOM_API_BASE_URL":       &cfg.APIBaseURL,
		"READINGROOM_LOG_LEVEL":          &cfg.LogLevel,
		"READINGROOM_SESSION_BACKEND":    &cfg.SessionBackend,
		"READINGROOM_SESSION_PATH":       &cfg.SessionPath,
		"READINGROOM_REDIS_ADDR":         &cfg.RedisAddr,
		"READINGROOM_REDIS_PASSWORD":     &cfg.RedisPassword,
		"READINGROOM_REDIS_PREFIX":       &cfg.RedisPrefix,
		"READINGROOM_REPORT_PATH":        &cfg.ReportPath,
		"READINGROOM_REPORT_TITLE":       &cfg.ReportTitle,
		"READINGROOM_BORROW_LINK_BASE":   &cfg.BorrowLinkBase,
		"READINGROOM_QR_DIR":             &cfg.QRDir,
		"READINGROOM_DEV_PORT":           &cfg.Dev.Port,
		"READINGROOM_DEV_JWT_SECRET":     &cfg.Dev.JWTSecret,
		"READINGROOM_DEV_ADMIN_USERNAME": &cfg.Dev.AdminUsername,
		"READINGROOM_DEV_ADMIN_PASSWORD": &cfg.Dev.AdminPassword,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"READINGROOM_REDIS_DB":               &cfg.RedisDB,
		"READINGROOM_REPORT_ROWS_PER_PAGE":   &cfg.ReportRowsPerPage,
		"READINGROOM_HTTP_TIMEOUT_SECONDS":   &cfg.HTTPTimeoutSecs,
		"READINGROOM_DEV_ACCESS_TTL_MINUTES": &cfg.Dev.AccessTTLMins,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return errors.New("config: apiBaseURL is required (set in readingroom.yaml or READINGROOM_API_BASE_URL)")
	}
	switch cfg.SessionBackend {
	case BackendSQLite:
		if strings.TrimSpace(cfg.SessionPath) == "" {
			return errors.New("config: sessionPath is required for the sqlite session backend")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis session backend")
		}
	default:
		return fmt.Errorf("config: sessionBackend must be %q or %q, got %q", BackendSQLite, BackendRedis, cfg.SessionBackend)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logLevel %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.ReportRowsPerPage <= 0 {
		return errors.New("config: reportRowsPerPage must be > 0")
	}
	if cfg.HTTPTimeoutSecs < 0 {
		return errors.New("config: httpTimeoutSeconds must be >= 0")
	}
	return nil
}
