package config_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chessoracle/chessoracle/pkg/config"
	"github.com/chessoracle/chessoracle/pkg/logger"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "stockfish", cfg.Engine.BinaryPath)
	assert.Equal(t, 2, cfg.Engine.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Analysis.MaxTimeLimit())
	assert.Equal(t, 3*time.Second, cfg.Analysis.StopGrace())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadJSONConfig(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"version": "1.0",
		"server": {"host": "127.0.0.1", "port": 9090},
		"engine": {"binaryPath": "/usr/bin/stockfish", "poolSize": 4, "threads": 2, "hashMb": 128},
		"analysis": {"maxTimeLimitMs": 10000, "stopGraceMs": 2000},
		"logging": {"level": "debug"}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/usr/bin/stockfish", cfg.Engine.BinaryPath)
	assert.Equal(t, 4, cfg.Engine.PoolSize)
	assert.Equal(t, 2, cfg.Engine.Threads)
	assert.Equal(t, 128, cfg.Engine.HashMB)
	assert.Equal(t, 10*time.Second, cfg.Analysis.MaxTimeLimit())
	assert.Equal(t, 2*time.Second, cfg.Analysis.StopGrace())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadYAMLConfig(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
version: "1.0"
server:
  host: 127.0.0.1
  port: 9191
engine:
  binaryPath: /opt/stockfish
  poolSize: 3
logging:
  level: warn
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/opt/stockfish", cfg.Engine.BinaryPath)
	assert.Equal(t, 3, cfg.Engine.PoolSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server": {"port": 9000}}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "stockfish", cfg.Engine.BinaryPath)
	assert.Equal(t, 2, cfg.Engine.PoolSize)
	assert.Equal(t, 1, cfg.Engine.Threads)
	assert.Equal(t, 64, cfg.Engine.HashMB)
	assert.Equal(t, 30000, cfg.Analysis.MaxTimeLimitMs)
	assert.Equal(t, 3000, cfg.Analysis.StopGraceMs)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad version", `{"version": "2.0"}`},
		{"bad port", `{"server": {"port": 70000}}`},
		{"bad pool size", `{"engine": {"poolSize": 200}}`},
		{"negative pool size", `{"engine": {"poolSize": -1}}`},
		{"unparseable", `{invalid`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "config.json", tc.content)
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestReloadManagerTriggerReload(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server": {"port": 9000}}`)
	log := logger.CreateLoggerWithOutput("error", io.Discard)

	rm := config.NewReloadManager(path, log)
	got := make(chan *config.Config, 1)
	rm.AddCallback(func(cfg *config.Config, err error) {
		require.NoError(t, err)
		got <- cfg
	})

	rm.TriggerReload()

	select {
	case cfg := <-got:
		assert.Equal(t, 9000, cfg.Server.Port)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestReloadManagerReportsLoadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "9.9"}`), 0o644))
	log := logger.CreateLoggerWithOutput("error", io.Discard)

	rm := config.NewReloadManager(path, log)
	errs := make(chan error, 1)
	rm.AddCallback(func(cfg *config.Config, err error) {
		errs <- err
	})

	rm.TriggerReload()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestReloadManagerWatchesFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 9000}}`), 0o644))
	log := logger.CreateLoggerWithOutput("error", io.Discard)

	rm := config.NewReloadManager(path, log)
	got := make(chan *config.Config, 4)
	rm.AddCallback(func(cfg *config.Config, err error) {
		if err == nil {
			got <- cfg
		}
	})

	require.NoError(t, rm.StartWatching())
	defer rm.StopWatching()

	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 9001}}`), 0o644))

	select {
	case cfg := <-got:
		assert.Equal(t, 9001, cfg.Server.Port)
	case <-time.After(3 * time.Second):
		t.Fatal("reload never fired after file change")
	}
}

// A shutdown while events are still arriving must not race the
// watcher teardown.
func TestStopWatchingDuringEventBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	log := logger.CreateLoggerWithOutput("error", io.Discard)

	rm := config.NewReloadManager(path, log)
	require.NoError(t, rm.StartWatching())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; i < 50; i++ {
			_ = os.WriteFile(path, []byte(`{"server": {"port": 9000}}`), 0o644)
		}
	}()

	require.NoError(t, rm.StopWatching())
	<-writerDone

	// Stop again after the burst; must stay a no-op
	require.NoError(t, rm.StopWatching())
}

func TestStartWatchingTwiceFails(t *testing.T) {
	path := writeConfig(t, "config.json", `{}`)
	log := logger.CreateLoggerWithOutput("error", io.Discard)

	rm := config.NewReloadManager(path, log)
	require.NoError(t, rm.StartWatching())
	defer rm.StopWatching()

	assert.Error(t, rm.StartWatching())
}
