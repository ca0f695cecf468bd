// Package browser starts a local Chromium with remote debugging enabled, so
// the panel has a page to attach to when no browser is already running.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config describes the Chromium instance to start.
type Config struct {
	DebugAddress string
	DebugPort    int
	// InspectURL is the page opened in the first tab.
	InspectURL string
	ProfileDir string
	Headless   bool
	// ExtraFlags are appended after the built-in flags.
	ExtraFlags []string
	// Output receives the browser's stdout and stderr. Nil discards it.
	Output       io.Writer
	ReadyTimeout time.Duration
}

// Launcher owns at most one Chromium process.
type Launcher struct {
	cfg     Config
	lookup  func() (string, error)
	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	exited  chan struct{}
	spawned bool
}

// NewLauncher returns a Launcher for cfg.
func NewLauncher(cfg Config) *Launcher {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if cfg.InspectURL == "" {
		cfg.InspectURL = "about:blank"
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	return &Launcher{cfg: cfg, lookup: findChromium}
}

var chromiumNames = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

const macChrome = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"

// ErrNoChromium is returned when no Chromium-family binary is installed.
var ErrNoChromium = errors.New("no chromium binary found")

func findChromium() (string, error) {
	for _, name := range chromiumNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		if _, err := os.Stat(macChrome); err == nil {
			return macChrome, nil
		}
	}
	return "", fmt.Errorf("%w (tried %v)", ErrNoChromium, chromiumNames)
}

// Args returns the command line the browser is started with.
func (l *Launcher) Args() []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-address=%s", l.cfg.DebugAddress),
		fmt.Sprintf("--remote-debugging-port=%d", l.cfg.DebugPort),
		fmt.Sprintf("--user-data-dir=%s", l.cfg.ProfileDir),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new")
	}
	args = append(args, l.cfg.ExtraFlags...)
	return append(args, l.cfg.InspectURL)
}

// Launch starts Chromium and waits for its debug endpoint. When something
// already answers on the endpoint, Launch leaves it alone and returns nil.
func (l *Launcher) Launch(ctx context.Context) error {
	client := &http.Client{Timeout: time.Second}
	if checkEndpoint(ctx, client, l.versionURL()) == nil {
		slog.Info("debug endpoint already answering, not launching a browser", "url", l.versionURL())
		return nil
	}

	path, err := l.lookup()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, l.Args()...)
	cmd.Stdout = l.cfg.Output
	cmd.Stderr = l.cfg.Output
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start chromium: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		slog.Info("chromium exited", "pid", cmd.Process.Pid, "error", err)
		close(exited)
	}()

	l.mu.Lock()
	l.cmd, l.cancel, l.exited, l.spawned = cmd, cancel, exited, true
	l.mu.Unlock()
	slog.Info("chromium started", "path", path, "pid", cmd.Process.Pid, "headless", l.cfg.Headless)

	if err := l.waitReady(ctx, client); err != nil {
		l.Stop()
		return err
	}
	slog.Info("debug endpoint ready", "url", l.versionURL())
	return nil
}

// waitReady polls the version endpoint with exponential backoff until it
// answers, ReadyTimeout passes, or ctx ends.
func (l *Launcher) waitReady(ctx context.Context, client *http.Client) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = l.cfg.ReadyTimeout

	url := l.versionURL()
	err := backoff.Retry(func() error {
		return checkEndpoint(ctx, client, url)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("debug endpoint %s not ready after %s: %w", url, l.cfg.ReadyTimeout, err)
	}
	return nil
}

func (l *Launcher) versionURL() string {
	return fmt.Sprintf("http://%s:%d/json/version", l.cfg.DebugAddress, l.cfg.DebugPort)
}

func checkEndpoint(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Spawned reports whether this Launcher started a browser that has not been
// stopped.
func (l *Launcher) Spawned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spawned
}

// Stop sends SIGTERM to the spawned browser and waits for it to exit. The
// process is killed if it is still running after five seconds.
func (l *Launcher) Stop() {
	l.mu.Lock()
	cmd, cancel, exited := l.cmd, l.cancel, l.exited
	l.cmd, l.cancel, l.spawned = nil, nil, false
	l.mu.Unlock()
	if cmd == nil {
		return
	}
	slog.Info("stopping chromium", "pid", cmd.Process.Pid)
	cancel()
	<-exited
}
