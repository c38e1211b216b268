package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "readingroom.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("READINGROOM_API_BASE_URL", "http://api.internal:9000/api/")
	t.Setenv("READINGROOM_REPORT_ROWS_PER_PAGE", "30")
	t.Setenv("READINGROOM_DEV_ADMIN_PASSWORD", "s3cret")

	cfgPath := writeConfig(t, `
apiBaseURL: "http://localhost:8000/api/"
logLevel: "debug"
sessionBackend: "redis"
redisAddr: "localhost:6380"
redisDB: 2
reportRowsPerPage: 20
dev:
  port: "8100"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIBaseURL != "http://api.internal:9000/api/" {
		t.Fatalf("apiBaseURL = %q, want env override", cfg.APIBaseURL)
	}
	if cfg.SessionBackend != BackendRedis || cfg.RedisAddr != "localhost:6380" || cfg.RedisDB != 2 {
		t.Fatalf("redis settings = %q %q %d", cfg.SessionBackend, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.ReportRowsPerPage != 30 {
		t.Fatalf("reportRowsPerPage = %d, want 30", cfg.ReportRowsPerPage)
	}
	if cfg.Dev.Port != "8100" || cfg.Dev.AdminPassword != "s3cret" {
		t.Fatalf("dev = %+v", cfg.Dev)
	}
	if cfg.ReportTitle != "Reading Room Report" {
		t.Fatalf("reportTitle = %q, want default", cfg.ReportTitle)
	}
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SessionBackend != BackendSQLite {
		t.Fatalf("sessionBackend = %q, want sqlite", cfg.SessionBackend)
	}
	if cfg.ReportRowsPerPage != 25 {
		t.Fatalf("reportRowsPerPage = %d, want 25", cfg.ReportRowsPerPage)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := map[string]func(*FileConfig){
		"empty base url":   func(c *FileConfig) { c.APIBaseURL = " " },
		"unknown backend":  func(c *FileConfig) { c.SessionBackend = "memcached" },
		"no redis addr":    func(c *FileConfig) { c.SessionBackend = BackendRedis; c.RedisAddr = "" },
		"no session path":  func(c *FileConfig) { c.SessionPath = "" },
		"bad log level":    func(c *FileConfig) { c.LogLevel = "loud" },
		"zero rows":        func(c *FileConfig) { c.ReportRowsPerPage = 0 },
		"negative timeout": func(c *FileConfig) { c.HTTPTimeoutSecs = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := validateConfig(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
