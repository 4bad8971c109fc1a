package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"habitxp/internal/game"
	"habitxp/internal/store"
)

type CLIConfig struct {
	Home        string
	Storage     store.Options
	BalanceFile string
	LogLevel    slog.Level
}

type WorkerConfig struct {
	CLIConfig
	ResetSchedule string
	CheckEvery    time.Duration
	RunOnce       bool
}

// LoadDotEnv reads .env from the working directory. A missing file is fine.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadCLIFromEnv() (CLIConfig, error) {
	home := envDefault("HXP_HOME", "")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return CLIConfig{}, fmt.Errorf("resolve home dir: %w", err)
		}
		home = filepath.Join(userHome, ".hxp")
	}

	cfg := CLIConfig{
		Home: home,
		Storage: store.Options{
			Driver:      strings.ToLower(envDefault("HXP_STORAGE", "file")),
			StatePath:   envDefault("HXP_STATE_PATH", filepath.Join(home, "state.json")),
			SQLitePath:  envDefault("HXP_SQLITE_PATH", filepath.Join(home, "hxp.db")),
			DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		BalanceFile: envDefault("HXP_BALANCE_FILE", ""),
		LogLevel:    envLevelDefault("HXP_LOG_LEVEL", slog.LevelWarn),
	}
	switch cfg.Storage.Driver {
	case "file", "sqlite":
	case "postgres", "postgresql":
		if cfg.Storage.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when HXP_STORAGE=%s", cfg.Storage.Driver)
		}
	default:
		return cfg, fmt.Errorf("HXP_STORAGE must be file, sqlite or postgres, got %q", cfg.Storage.Driver)
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	base, err := LoadCLIFromEnv()
	if err != nil {
		return WorkerConfig{}, err
	}
	cfg := WorkerConfig{
		CLIConfig:     base,
		ResetSchedule: envDefault("HXP_RESET_SCHEDULE", "0 12 * * *"),
		CheckEvery:    envDurationDefault("HXP_CHECK_EVERY", 15*time.Minute),
		RunOnce:       envBoolDefault("HXP_WORKER_RUN_ONCE", false),
	}
	if cfg.CheckEvery <= 0 {
		return cfg, fmt.Errorf("HXP_CHECK_EVERY must be positive")
	}
	return cfg, nil
}

// LoadRules reads balance overrides from a YAML file on top of the defaults.
// An empty path yields the defaults. A categories list in the file replaces
// the default list wholesale.
func LoadRules(path string) (game.Rules, error) {
	rules := game.DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read balance file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return game.DefaultRules(), fmt.Errorf("parse balance file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return game.DefaultRules(), fmt.Errorf("balance file %s: %w", path, err)
	}
	return rules, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envLevelDefault(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}
