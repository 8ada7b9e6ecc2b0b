package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	RedisURL    string
	DemoMode    bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	Backends []models.Backend

	TransferWorkers     int
	TransferQueueDepth  int
	ConfirmPollInitial  time.Duration
	ConfirmPollMax      time.Duration
	ConfirmWaitBudget   time.Duration
	ResumeInterval      time.Duration
	ReconcileInterval   time.Duration
	SnapshotTTL         time.Duration
	SnapshotRetention   time.Duration
	PublicRateLimitRPS  int
	WalletRateLimitRPS  int
	LogLevel            string
	DemoSeedBalanceUnit int64
}

// defaultBackends is the demo-mode backend set: a representative slice of the
// supported heterogeneous value stores.
const defaultBackends = `[
  {"backend_id":"eth-mainnet","kind":"CRYPTO","native_unit":"ETH","enabled":true},
  {"backend_id":"btc-mainnet","kind":"CRYPTO","native_unit":"BTC","enabled":true},
  {"backend_id":"sol-mainnet","kind":"CRYPTO","native_unit":"SOL","enabled":true},
  {"backend_id":"polygon-pos","kind":"CRYPTO","native_unit":"MATIC","enabled":true},
  {"backend_id":"avalanche-c","kind":"CRYPTO","native_unit":"AVAX","enabled":true},
  {"backend_id":"bsc-mainnet","kind":"CRYPTO","native_unit":"BNB","enabled":true},
  {"backend_id":"cardano","kind":"CRYPTO","native_unit":"ADA","enabled":true},
  {"backend_id":"polkadot","kind":"CRYPTO","native_unit":"DOT","enabled":true},
  {"backend_id":"eos-mainnet","kind":"CRYPTO","native_unit":"EOS","enabled":true},
  {"backend_id":"stellar","kind":"CRYPTO","native_unit":"XLM","enabled":true},
  {"backend_id":"tron","kind":"CRYPTO","native_unit":"TRX","enabled":true},
  {"backend_id":"neo","kind":"CRYPTO","native_unit":"NEO","enabled":true},
  {"backend_id":"holochain","kind":"CRYPTO","native_unit":"HOT","enabled":true},
  {"backend_id":"bank-usd","kind":"FIAT","native_unit":"USD","enabled":true,"supports_replication":true},
  {"backend_id":"bank-eur","kind":"FIAT","native_unit":"EUR","enabled":true,"supports_replication":true},
  {"backend_id":"bank-gbp","kind":"FIAT","native_unit":"GBP","enabled":true,"supports_replication":true}
]`

// Load reads environment variables using viper and returns a typed config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "OMNIWALLET_PORT")
	bindEnv(v, "database_url", "DATABASE_URL", "OMNIWALLET_DATABASE_URL")
	bindEnv(v, "redis_url", "REDIS_URL", "OMNIWALLET_REDIS_URL")
	bindEnv(v, "demo_mode", "DEMO_MODE", "OMNIWALLET_DEMO_MODE")
	bindEnv(v, "jwt_secret", "JWT_SECRET", "OMNIWALLET_JWT_SECRET")
	bindEnv(v, "jwt_issuer", "JWT_ISSUER", "OMNIWALLET_JWT_ISSUER")
	bindEnv(v, "jwt_audience", "JWT_AUDIENCE", "OMNIWALLET_JWT_AUDIENCE")
	bindEnv(v, "backends", "BACKENDS", "OMNIWALLET_BACKENDS")
	bindEnv(v, "transfer_workers", "TRANSFER_WORKERS", "OMNIWALLET_TRANSFER_WORKERS")
	bindEnv(v, "transfer_queue_depth", "TRANSFER_QUEUE_DEPTH", "OMNIWALLET_TRANSFER_QUEUE_DEPTH")
	bindEnv(v, "confirm_poll_initial", "CONFIRM_POLL_INITIAL", "OMNIWALLET_CONFIRM_POLL_INITIAL")
	bindEnv(v, "confirm_poll_max", "CONFIRM_POLL_MAX", "OMNIWALLET_CONFIRM_POLL_MAX")
	bindEnv(v, "confirm_wait_budget", "CONFIRM_WAIT_BUDGET", "OMNIWALLET_CONFIRM_WAIT_BUDGET")
	bindEnv(v, "resume_interval", "RESUME_INTERVAL", "OMNIWALLET_RESUME_INTERVAL")
	bindEnv(v, "reconcile_interval", "RECONCILE_INTERVAL", "OMNIWALLET_RECONCILE_INTERVAL")
	bindEnv(v, "snapshot_ttl", "SNAPSHOT_TTL", "OMNIWALLET_SNAPSHOT_TTL")
	bindEnv(v, "snapshot_retention", "SNAPSHOT_RETENTION", "OMNIWALLET_SNAPSHOT_RETENTION")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "OMNIWALLET_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "wallet_rate_limit_rps", "WALLET_RATE_LIMIT_RPS", "OMNIWALLET_WALLET_RATE_LIMIT_RPS")
	bindEnv(v, "log_level", "LOG_LEVEL", "OMNIWALLET_LOG_LEVEL")
	bindEnv(v, "demo_seed_balance", "DEMO_SEED_BALANCE", "OMNIWALLET_DEMO_SEED_BALANCE")

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("demo_mode", false)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "omniwallet")
	v.SetDefault("jwt_audience", "omniwallet-api")
	v.SetDefault("backends", defaultBackends)
	v.SetDefault("transfer_workers", 4)
	v.SetDefault("transfer_queue_depth", 256)
	v.SetDefault("confirm_poll_initial", "2s")
	v.SetDefault("confirm_poll_max", "60s")
	v.SetDefault("confirm_wait_budget", "30m")
	v.SetDefault("resume_interval", "1m")
	v.SetDefault("reconcile_interval", "5m")
	v.SetDefault("snapshot_ttl", "30s")
	v.SetDefault("snapshot_retention", "24h")
	v.SetDefault("public_rate_limit_rps", 10)
	v.SetDefault("wallet_rate_limit_rps", 100)
	v.SetDefault("log_level", "info")
	v.SetDefault("demo_seed_balance", 10_000_000)

	durations := map[string]*time.Duration{
		"confirm_poll_initial": nil,
		"confirm_poll_max":     nil,
		"confirm_wait_budget":  nil,
		"resume_interval":      nil,
		"reconcile_interval":   nil,
		"snapshot_ttl":         nil,
		"snapshot_retention":   nil,
	}
	for key := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
		}
		dd := d
		durations[key] = &dd
	}

	var backends []models.Backend
	if err := json.Unmarshal([]byte(v.GetString("backends")), &backends); err != nil {
		return nil, fmt.Errorf("invalid BACKENDS: %w", err)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("BACKENDS must list at least one backend")
	}
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if strings.TrimSpace(b.ID) == "" || strings.TrimSpace(b.NativeUnit) == "" {
			return nil, fmt.Errorf("BACKENDS entries require id and native_unit")
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("BACKENDS lists backend %q twice", b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	cfg := &Config{
		HTTPPort:            v.GetString("port"),
		DatabaseURL:         v.GetString("database_url"),
		RedisURL:            v.GetString("redis_url"),
		DemoMode:            v.GetBool("demo_mode"),
		JWTSecret:           v.GetString("jwt_secret"),
		JWTIssuer:           v.GetString("jwt_issuer"),
		JWTAudience:         v.GetString("jwt_audience"),
		Backends:            backends,
		TransferWorkers:     max(v.GetInt("transfer_workers"), 1),
		TransferQueueDepth:  max(v.GetInt("transfer_queue_depth"), 16),
		ConfirmPollInitial:  *durations["confirm_poll_initial"],
		ConfirmPollMax:      *durations["confirm_poll_max"],
		ConfirmWaitBudget:   *durations["confirm_wait_budget"],
		ResumeInterval:      *durations["resume_interval"],
		ReconcileInterval:   *durations["reconcile_interval"],
		SnapshotTTL:         *durations["snapshot_ttl"],
		SnapshotRetention:   *durations["snapshot_retention"],
		PublicRateLimitRPS:  max(v.GetInt("public_rate_limit_rps"), 1),
		WalletRateLimitRPS:  max(v.GetInt("wallet_rate_limit_rps"), 1),
		LogLevel:            v.GetString("log_level"),
		DemoSeedBalanceUnit: v.GetInt64("demo_seed_balance"),
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(cfg.JWTIssuer) == "" {
		return nil, fmt.Errorf("JWT_ISSUER is required")
	}
	if strings.TrimSpace(cfg.JWTAudience) == "" {
		return nil, fmt.Errorf("JWT_AUDIENCE is required")
	}
	if !cfg.DemoMode && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required unless DEMO_MODE is true")
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
