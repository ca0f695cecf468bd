package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the repplus service.
type Config struct {
	// CDP connection settings
	CDPAddress       string
	CDPPort          int
	ConnectTimeoutMS int
	ReadTimeoutMS    int

	// Tab matching and behavior
	TabURLFilter   string
	ReloadOnAttach bool

	// HTTP API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Logging
	LogLevel string
	LogFile  string

	// Capture and scan limits
	MaxPayloadBytes int
	ScanConcurrency int

	// Scan alerts; empty disables them.
	NotifyURL string

	// Browser launch
	LaunchBrowser   bool
	StartURL        string
	ProfileDir      string
	BrowserHeadless bool
	BrowserFlags    []string
	// BrowserLogFile receives Chromium's stdout and stderr; empty discards it.
	BrowserLogFile string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:          getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:             getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		ConnectTimeoutMS:    getEnvIntOrDefault("REPPLUS_CONNECT_TIMEOUT_MS", 15000),
		ReadTimeoutMS:       getEnvIntOrDefault("REPPLUS_READ_TIMEOUT_MS", 10000),
		TabURLFilter:        getEnvOrDefault("REPPLUS_TAB_URL_FILTER", ""),
		ReloadOnAttach:      getEnvBoolOrDefault("REPPLUS_RELOAD_ON_ATTACH", false),
		BindAddr:            getEnvOrDefault("REPPLUS_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:      getEnvListOrDefault("REPPLUS_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback:    getEnvBoolOrDefault("REPPLUS_PORT_AUTO_FALLBACK", true),
		LogLevel:            strings.ToLower(getEnvOrDefault("REPPLUS_LOG_LEVEL", "info")),
		LogFile:             getEnvOrDefault("REPPLUS_LOG_FILE", "logs/repplus.log"),
		MaxPayloadBytes:     getEnvIntOrDefault("REPPLUS_MAX_PAYLOAD_BYTES", 1024*1024),
		ScanConcurrency:     getEnvIntOrDefault("REPPLUS_SCAN_CONCURRENCY", 8),
		NotifyURL:           getEnvOrDefault("REPPLUS_NOTIFY_URL", ""),
		LaunchBrowser:       getEnvBoolOrDefault("REPPLUS_LAUNCH_BROWSER", false),
		StartURL:            getEnvOrDefault("REPPLUS_START_URL", "about:blank"),
		ProfileDir:          getEnvOrDefault("REPPLUS_PROFILE_DIR", "./browser/profile"),
		BrowserHeadless:     getEnvBoolOrDefault("REPPLUS_BROWSER_HEADLESS", false),
		BrowserFlags:        getEnvListOrDefault("REPPLUS_BROWSER_FLAGS", nil),
		BrowserLogFile:      getEnvOrDefault("REPPLUS_BROWSER_LOG_FILE", "logs/chromium.log"),
	}
	if cfg.ConnectTimeoutMS < 1000 {
		cfg.ConnectTimeoutMS = 1000
	}
	if cfg.ReadTimeoutMS < 1000 {
		cfg.ReadTimeoutMS = 1000
	}
	if cfg.ScanConcurrency < 1 {
		cfg.ScanConcurrency = 1
	}

	return cfg, nil
}

// CDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvListOrDefault splits a comma-separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
