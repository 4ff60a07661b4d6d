package cli

import (
	"testing"

	"github.com/spf13/viper"
)

func TestServeCommandFlags(t *testing.T) {
	defer viper.Reset()
	cmd := newServeCmd()

	for _, name := range []string{"engine", "pool-size", "port"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("serve command missing --%s flag", name)
		}
	}

	if err := cmd.Flags().Parse([]string{"--engine", "/opt/stockfish", "--pool-size", "4", "--port", "9090"}); err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}

	// Flags are bound into viper's config keys
	if got := viper.GetString("engine.binaryPath"); got != "/opt/stockfish" {
		t.Errorf("engine.binaryPath = %q", got)
	}
	if got := viper.GetInt("engine.poolSize"); got != 4 {
		t.Errorf("engine.poolSize = %d", got)
	}
	if got := viper.GetInt("server.port"); got != 9090 {
		t.Errorf("server.port = %d", got)
	}
}

func TestLoadServeConfigAppliesOverrides(t *testing.T) {
	defer viper.Reset()
	defer func() { verbosity = "" }()

	viper.Set("engine.binaryPath", "/usr/local/bin/stockfish")
	viper.Set("engine.poolSize", 8)
	viper.Set("server.port", 9191)
	verbosity = "debug"

	cfg, err := loadServeConfig()
	if err != nil {
		t.Fatalf("loadServeConfig failed: %v", err)
	}

	if cfg.Engine.BinaryPath != "/usr/local/bin/stockfish" {
		t.Errorf("binaryPath = %q", cfg.Engine.BinaryPath)
	}
	if cfg.Engine.PoolSize != 8 {
		t.Errorf("poolSize = %d", cfg.Engine.PoolSize)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadServeConfigDefaults(t *testing.T) {
	defer viper.Reset()
	defer func() { verbosity = "" }()
	verbosity = ""

	cfg, err := loadServeConfig()
	if err != nil {
		t.Fatalf("loadServeConfig failed: %v", err)
	}

	if cfg.Engine.BinaryPath != "stockfish" {
		t.Errorf("binaryPath = %q", cfg.Engine.BinaryPath)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestRootCommandWiring(t *testing.T) {
	defer viper.Reset()
	initializeRootCommand()

	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
	if rootCmd.PersistentFlags().Lookup("verbosity") == nil {
		t.Error("missing --verbosity flag")
	}

	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["serve"] || !names["version"] {
		t.Errorf("subcommands = %v, want serve and version", names)
	}
}
