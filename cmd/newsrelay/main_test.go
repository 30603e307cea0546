package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newsrelay/pkg/config"
)

func TestRun_MissingConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: "non-existent-config.yml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid-config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: configPath})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_MissingToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Destination: "123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token is required")
}

func TestRun_RelaysChangedFeed(t *testing.T) {
	oldDoc := `{"events":[{"announcement_body":{"headline":"Old news","body":"old"}}]}`
	newDoc := `{"events":[{"announcement_body":{"headline":"Patch 7.35d","body":"[list][*]Fixed a bug.[/list]"}},` +
		`{"announcement_body":{"headline":"Old news","body":"old"}}]}`

	var fetches atomic.Int32
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches.Add(1) <= 2 {
			_, _ = w.Write([]byte(oldDoc))
			return
		}
		_, _ = w.Write([]byte(newDoc))
	}))
	defer feedSrv.Close()

	var mu sync.Mutex
	var texts []string
	tgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		text := ""
		var req map[string]any
		if json.Unmarshal(body, &req) == nil {
			text, _ = req["text"].(string)
		} else if vals, err := url.ParseQuery(string(body)); err == nil {
			text = vals.Get("text")
		}
		if text != "" {
			mu.Lock()
			texts = append(texts, text)
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1711584000,"chat":{"id":123,"type":"private"}}}`))
	}))
	defer tgSrv.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	tmpDir := t.TempDir()
	configContent := fmt.Sprintf(`
feed:
  url: %s/events
poll:
  interval: 20ms
telegram:
  token: 123:abc
  destination: "123"
  api_url: %s
  rate_limit: 100
storage:
  type: file
  path: %s
message:
  preamble: "_news_"
server:
  listen: 127.0.0.1:%d
`, feedSrv.URL, tgSrv.URL, filepath.Join(tmpDir, "snapshot.json"), port)
	configPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, Opts{Config: configPath}) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(texts) > 0
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/snapshot", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/status", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return status["changes"] == float64(1)
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, texts, 1, "change delivered once")
	assert.Equal(t, "_news_\n\n*Patch 7\\.35d*\n📌Fixed a bug\\.", texts[0])

	data, err := os.ReadFile(filepath.Join(tmpDir, "snapshot.json")) //nolint:gosec // test file
	require.NoError(t, err)
	assert.JSONEq(t, `["Patch 7.35d","Old news"]`, string(data))
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	applyOverrides(cfg, Opts{})
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Empty(t, cfg.Telegram.Token)

	applyOverrides(cfg, Opts{Interval: 30, Token: "123:abc", Destination: "@news"})
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "@news", cfg.Telegram.Destination)
}

func TestMakeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		store, closeFn, err := makeStore(ctx, config.StorageConfig{Type: "file", Path: filepath.Join(t.TempDir(), "s", "snap.json")})
		require.NoError(t, err)
		defer closeFn()
		assert.NotNil(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := "file:" + filepath.Join(t.TempDir(), "snap.db")
		store, closeFn, err := makeStore(ctx, config.StorageConfig{Type: "sqlite", DSN: dsn})
		require.NoError(t, err)
		defer closeFn()
		assert.NotNil(t, store)
	})
}

func TestSetupLog(t *testing.T) {
	t.Run("debug mode enabled", func(t *testing.T) {
		setupLog(true, false)
	})

	t.Run("debug mode disabled", func(t *testing.T) {
		setupLog(false, false)
	})

	t.Run("with secrets", func(t *testing.T) {
		setupLog(true, true, "secret1", "", "secret2")
	})
	setupLog(false, true)
}

func TestOpts_Env(t *testing.T) {
	t.Setenv("SLEEP_DURATION_SECS", "12")
	t.Setenv("TELEGRAM_TOKEN", "1:tok")
	t.Setenv("TELEGRAM_CHAT_ID", "@chan")

	var opts Opts
	_, err := flags.NewParser(&opts, flags.Default).ParseArgs([]string{})
	require.NoError(t, err)
	assert.Equal(t, 12, opts.Interval)
	assert.Equal(t, "1:tok", opts.Token)
	assert.Equal(t, "@chan", opts.Destination)
	assert.Empty(t, opts.Config)
}
