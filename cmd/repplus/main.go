package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/repplus/internal/api"
	"github.com/dgnsrekt/repplus/internal/browser"
	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/cdp"
	"github.com/dgnsrekt/repplus/internal/config"
	"github.com/dgnsrekt/repplus/internal/controller"
	"github.com/dgnsrekt/repplus/internal/netutil"
	"github.com/dgnsrekt/repplus/internal/notify"
	"github.com/dgnsrekt/repplus/internal/relay"
	"github.com/dgnsrekt/repplus/internal/replay"
	"github.com/dgnsrekt/repplus/internal/session"
	"github.com/dgnsrekt/repplus/internal/signature"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("repplus config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"port_candidates", cfg.PortCandidates,
		"port_auto_fallback", cfg.PortAutoFallback,
		"tab_url_filter", cfg.TabURLFilter,
		"max_payload_bytes", cfg.MaxPayloadBytes,
		"scan_concurrency", cfg.ScanConcurrency,
		"notify_enabled", cfg.NotifyURL != "",
		"launch_browser", cfg.LaunchBrowser,
		"browser_headless", cfg.BrowserHeadless,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	var launcher *browser.Launcher
	var browserLog io.WriteCloser
	if cfg.LaunchBrowser {
		browserLog, err = browserOutput(cfg.BrowserLogFile)
		if err != nil {
			slog.Error("failed to open browser log", "file", cfg.BrowserLogFile, "error", err)
			os.Exit(1)
		}
		launcher = browser.NewLauncher(browser.Config{
			DebugAddress: cfg.CDPAddress,
			DebugPort:    cfg.CDPPort,
			InspectURL:   cfg.StartURL,
			ProfileDir:   cfg.ProfileDir,
			Headless:     cfg.BrowserHeadless,
			ExtraFlags:   cfg.BrowserFlags,
			Output:       browserLog,
			ReadyTimeout: cfg.ConnectTimeout(),
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			_ = browserLog.Close()
			os.Exit(1)
		}
	}
	stopBrowser := func() {
		if launcher != nil && launcher.Spawned() {
			launcher.Stop()
		}
		if browserLog != nil {
			_ = browserLog.Close()
		}
	}

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		stopBrowser()
		os.Exit(1)
	}

	cdpClient := cdp.NewClient(cdp.Options{
		CDPURL:          cfg.CDPURL(),
		TabURLFilter:    cfg.TabURLFilter,
		ReloadOnAttach:  cfg.ReloadOnAttach,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		ConnectTimeout:  cfg.ConnectTimeout(),
		ReadTimeout:     cfg.ReadTimeout(),
	})
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		stopBrowser()
		os.Exit(1)
	}

	var notifier controller.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewWebhook(&http.Client{Timeout: 10 * time.Second}, cfg.NotifyURL)
	}

	broker := relay.NewBroker()
	sess := session.New(capture.NewBuffer())
	engine := replay.NewEngine(&http.Client{})
	scanner := signature.NewScanner(cfg.ScanConcurrency)
	svc := controller.NewService(cdpClient, engine, scanner, sess, broker, notifier)

	ctx, cancelRun := context.WithCancel(context.Background())
	if err := svc.Start(ctx); err != nil {
		slog.Error("failed to start service", "error", err)
		cancelRun()
		_ = cdpClient.Close()
		stopBrowser()
		os.Exit(1)
	}

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc, broker)}

	go func() {
		slog.Info("repplus listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs", "tab", cdpClient.TabURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("repplus server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("repplus shutdown failed", "error", err)
	}

	svc.Stop()
	cancelRun()
	if err := cdpClient.Close(); err != nil {
		slog.Debug("CDP client close failed", "error", err)
	}
	stopBrowser()
}

// browserOutput returns a rotating sink for Chromium's console output, or a
// no-op writer when filename is empty.
func browserOutput(filename string) (io.WriteCloser, error) {
	if filename == "" {
		return nopWriteCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
