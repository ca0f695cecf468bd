package browser

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launcherFor(t *testing.T, addr string, timeout time.Duration) *Launcher {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return NewLauncher(Config{
		DebugAddress: host,
		DebugPort:    port,
		ProfileDir:   filepath.Join(t.TempDir(), "profile"),
		ReadyTimeout: timeout,
	})
}

// closedAddr returns a loopback address with nothing listening on it.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{
		DebugAddress: "127.0.0.1",
		DebugPort:    9220,
		ProfileDir:   "/tmp/p",
		Headless:     true,
		ExtraFlags:   []string{"--mute-audio"},
		InspectURL:   "https://app.test/",
	})

	assert.Equal(t, []string{
		"--remote-debugging-address=127.0.0.1",
		"--remote-debugging-port=9220",
		"--user-data-dir=/tmp/p",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--headless=new",
		"--mute-audio",
		"https://app.test/",
	}, l.Args())
}

func TestArgsDefaultsToBlankPage(t *testing.T) {
	args := NewLauncher(Config{DebugAddress: "127.0.0.1", DebugPort: 1}).Args()
	assert.Equal(t, "about:blank", args[len(args)-1])
	assert.NotContains(t, args, "--headless=new")
}

func TestWaitReadyRetriesUntilReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/version", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"Browser":"Chrome"}`))
	}))
	defer srv.Close()

	l := launcherFor(t, srv.Listener.Addr().String(), 10*time.Second)
	require.NoError(t, l.waitReady(context.Background(), srv.Client()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitReadyGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := launcherFor(t, srv.Listener.Addr().String(), 600*time.Millisecond)
	err := l.waitReady(context.Background(), srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready after")
}

func TestWaitReadyHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := launcherFor(t, srv.Listener.Addr().String(), 10*time.Second)
	assert.ErrorIs(t, l.waitReady(ctx, srv.Client()), context.Canceled)
}

func TestLaunchLeavesRunningBrowserAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Browser":"Chrome"}`))
	}))
	defer srv.Close()

	l := launcherFor(t, srv.Listener.Addr().String(), time.Second)
	l.lookup = func() (string, error) {
		t.Error("browser binary looked up while an endpoint was answering")
		return "", ErrNoChromium
	}

	require.NoError(t, l.Launch(context.Background()))
	assert.False(t, l.Spawned())
}

func TestLaunchWithoutChromium(t *testing.T) {
	l := launcherFor(t, closedAddr(t), time.Second)
	l.lookup = func() (string, error) { return "", ErrNoChromium }

	assert.ErrorIs(t, l.Launch(context.Background()), ErrNoChromium)
	assert.False(t, l.Spawned())
}

func TestLaunchStopsBrowserThatNeverAnswers(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the browser")
	}
	script := filepath.Join(t.TempDir(), "fake-chromium")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	l := launcherFor(t, closedAddr(t), 500*time.Millisecond)
	l.lookup = func() (string, error) { return script, nil }

	start := time.Now()
	err := l.Launch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready after")
	assert.False(t, l.Spawned())
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.DirExists(t, l.cfg.ProfileDir)

	l.Stop()
}
