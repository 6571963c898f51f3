package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration. Values come from an optional
// YAML file, overridden by environment variables (AGENTFLOW_* prefix).
type Config struct {
	Port         int    `yaml:"port"`
	DatabasePath string `yaml:"database_path"`

	// JWTSecret signs web-chat and dashboard API tokens
	JWTSecret string `yaml:"jwt_secret"`

	// Webhook shared secrets
	TelegramWebhookSecret string `yaml:"telegram_webhook_secret"`
	GatewaySecret         string `yaml:"gateway_secret"`
	CronSecret            string `yaml:"cron_secret"`

	// SessionRetentionDays bounds session history. 0 disables pruning.
	SessionRetentionDays int `yaml:"session_retention_days"`

	// HistoryWindow is the number of recent messages fed to the composer.
	HistoryWindow int `yaml:"history_window"`

	Chain    ChainConfig    `yaml:"chain"`
	SelfClaw SelfClawConfig `yaml:"selfclaw"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ChainConfig configures the on-chain wallet collaborator.
type ChainConfig struct {
	RPCURL      string `yaml:"rpc_url"`
	ChainID     int64  `yaml:"chain_id"`
	ExplorerURL string `yaml:"explorer_url"`
	// MasterSeed is the hex-encoded seed agent wallet keys derive from.
	MasterSeed string `yaml:"master_seed"`
}

// SelfClawConfig configures the external reputation/economics API client.
type SelfClawConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// CacheConfig selects the price-history cache backend.
type CacheConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	// Capacity is the per-key ring buffer size for the memory backend.
	Capacity int `yaml:"capacity"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Port:                 8090,
		DatabasePath:         "agentflow.db",
		SessionRetentionDays: 30,
		HistoryWindow:        20,
		Chain: ChainConfig{
			ChainID:     42220,
			ExplorerURL: "https://celoscan.io",
		},
		Cache: CacheConfig{
			Backend:  "memory",
			Capacity: 288,
		},
	}
}

// Load reads configuration from the given YAML path (optional) and applies
// environment overrides. A missing file is not an error; env-only deployments
// are common.
func Load(path string) (Config, error) {
	// .env is for local development; ignore when absent
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.SessionRetentionDays < 0 {
		return cfg, fmt.Errorf("session_retention_days must be non-negative, got %d", cfg.SessionRetentionDays)
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENTFLOW_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("AGENTFLOW_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("AGENTFLOW_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("AGENTFLOW_TELEGRAM_WEBHOOK_SECRET"); v != "" {
		cfg.TelegramWebhookSecret = v
	}
	if v := os.Getenv("AGENTFLOW_GATEWAY_SECRET"); v != "" {
		cfg.GatewaySecret = v
	}
	if v := os.Getenv("AGENTFLOW_CRON_SECRET"); v != "" {
		cfg.CronSecret = v
	}
	if v := os.Getenv("AGENTFLOW_SESSION_RETENTION_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.SessionRetentionDays = d
		}
	}
	if v := os.Getenv("AGENTFLOW_CHAIN_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("AGENTFLOW_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Chain.ChainID = id
		}
	}
	if v := os.Getenv("AGENTFLOW_CHAIN_EXPLORER_URL"); v != "" {
		cfg.Chain.ExplorerURL = v
	}
	if v := os.Getenv("AGENTFLOW_MASTER_SEED"); v != "" {
		cfg.Chain.MasterSeed = v
	}
	if v := os.Getenv("AGENTFLOW_SELFCLAW_BASE_URL"); v != "" {
		cfg.SelfClaw.BaseURL = v
	}
	if v := os.Getenv("AGENTFLOW_SELFCLAW_API_KEY"); v != "" {
		cfg.SelfClaw.APIKey = v
	}
	if v := os.Getenv("AGENTFLOW_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("AGENTFLOW_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
}
