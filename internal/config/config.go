package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Session   SessionConfig
	MediaVendor MediaVendorConfig
	Oracle    OracleConfig
	Chain     ChainConfig
	Registry  RegistryConfig
	Room      RoomConfig
	Agent     AgentConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// SessionConfig holds the session-token HMAC key (C1).
type SessionConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MediaVendorConfig holds the media vendor (Agora) credentials consumed by
// the media-token minter (C3). A dummy all-zero AppCertificate is a valid
// placeholder in non-production deployments.
type MediaVendorConfig struct {
	AppID          string `mapstructure:"app_id"`
	AppCertificate string `mapstructure:"app_certificate"`
}

// OracleConfig holds the settlement-attestation signing key (C6). If unset,
// the attestation sweeper no-ops.
type OracleConfig struct {
	PrivateKey     string `mapstructure:"private_key"`
	SettlementURL  string `mapstructure:"settlement_url"`
	SweepInterval  int64  `mapstructure:"sweep_interval_sec"`
}

// ChainConfig binds the EIP-712 domains used by the attestation sweeper's
// settlement summary and the song registry's controller attestation. Both
// typically point at the same settlement chain, but each has its own
// verifying contract address.
type ChainConfig struct {
	ChainID                   int64  `mapstructure:"chain_id"`
	SettlementContractAddress string `mapstructure:"settlement_contract_address"`
	RegistryContractAddress   string `mapstructure:"registry_contract_address"`
}

// RegistryConfig holds the song-registry admin bearer token.
type RegistryConfig struct {
	AdminToken string `mapstructure:"admin_token"`
}

// RoomConfig holds the timing constants from spec §6.
type RoomConfig struct {
	HeartbeatIntervalSec int64 `mapstructure:"heartbeat_interval_sec"`
	TokenTTLShortSec     int64 `mapstructure:"token_ttl_short_sec"`
	TokenTTLBookedSec    int64 `mapstructure:"token_ttl_booked_sec"`
	RenewMinSeconds      int64 `mapstructure:"renew_min_seconds"`
	CreditsLowThreshold  int64 `mapstructure:"credits_low_threshold"`
	AccessWindowMinutes  int64 `mapstructure:"access_window_minutes"`
}

// AgentConfig holds the AI-agent orchestrator sidecar's gRPC address.
// Empty means no sidecar is configured; the room actor skips agent
// lifecycle hooks entirely.
type AgentConfig struct {
	OrchestratorAddr string `mapstructure:"orchestrator_addr"`
}

// WorkerConfig carries settings for the external image/watermark worker.
// Nothing in the core reads these; they are recognized here so operators
// can configure the whole deployment from one place.
type WorkerConfig struct {
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key"`
	FalAPIKey        string `mapstructure:"fal_api_key"`
	FilebaseAPIKey   string `mapstructure:"filebase_api_key"`
	WatermarkSecret  string `mapstructure:"watermark_secret"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("room.heartbeat_interval_sec", 30)
	v.SetDefault("room.token_ttl_short_sec", 90)
	v.SetDefault("room.token_ttl_booked_sec", 3600)
	v.SetDefault("room.renew_min_seconds", 10)
	v.SetDefault("room.credits_low_threshold", 60)
	v.SetDefault("room.access_window_minutes", 60)
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("oracle.sweep_interval_sec", 30)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                   "PORT",
		"redis.addr":                    "REDIS_ADDR",
		"redis.password":                "REDIS_PASSWORD",
		"session.jwt_secret":            "JWT_SECRET",
		"media_vendor.app_id":           "AGORA_APP_ID",
		"media_vendor.app_certificate":  "AGORA_APP_CERTIFICATE",
		"oracle.private_key":            "ORACLE_PRIVATE_KEY",
		"oracle.settlement_url":         "SETTLEMENT_ORACLE_URL",
		"oracle.sweep_interval_sec":     "SETTLEMENT_SWEEP_INTERVAL_SECONDS",
		"chain.chain_id":                "CHAIN_ID",
		"chain.settlement_contract_address": "SETTLEMENT_CONTRACT_ADDRESS",
		"chain.registry_contract_address":   "REGISTRY_CONTRACT_ADDRESS",
		"registry.admin_token":          "SONG_REGISTRY_ADMIN_TOKEN",
		"room.heartbeat_interval_sec":   "HEARTBEAT_INTERVAL_SECONDS",
		"room.token_ttl_short_sec":      "TOKEN_TTL_SHORT_SECONDS",
		"room.token_ttl_booked_sec":     "TOKEN_TTL_BOOKED_SECONDS",
		"room.renew_min_seconds":        "RENEW_MIN_SECONDS",
		"room.credits_low_threshold":    "CREDITS_LOW_THRESHOLD",
		"room.access_window_minutes":    "ACCESS_WINDOW_MINUTES",
		"agent.orchestrator_addr":       "AGENT_ORCHESTRATOR_ADDR",
		"worker.openrouter_api_key":     "OPENROUTER_API_KEY",
		"worker.fal_api_key":            "FAL_API_KEY",
		"worker.filebase_api_key":       "FILEBASE_API_KEY",
		"worker.watermark_secret":       "WATERMARK_SECRET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Session.JWTSecret, "JWT_SECRET"},
		{c.MediaVendor.AppID, "AGORA_APP_ID"},
		{c.MediaVendor.AppCertificate, "AGORA_APP_CERTIFICATE"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	// ORACLE_PRIVATE_KEY is intentionally optional: if unset, the
	// attestation sweeper runs as a documented no-op (spec §9).
	return nil
}
