package config

import (
	"fmt"
	"strings"
)

var (
	MinQuotaEpochSeconds = uint32(60)
)

func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	switch strings.ToLower(cfg.EventLog.Driver) {
	case "", "none":
	case "sqlite", "postgres":
		if strings.TrimSpace(cfg.EventLog.DSN) == "" {
			return fmt.Errorf("eventlog: dsn required for driver %q", cfg.EventLog.Driver)
		}
	default:
		return fmt.Errorf("eventlog: unsupported driver %q", cfg.EventLog.Driver)
	}
	if cfg.Redis.MaxLen < 0 {
		return fmt.Errorf("redis: max_len < 0")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio outside [0,1]")
	}
	if cfg.RPC.RateLimitPerSecond < 0 || cfg.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: negative rate limit")
	}
	if cfg.RPC.RateLimitPerSecond > 0 && cfg.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: rate_limit_burst must be positive when rate limiting")
	}
	if (cfg.Quota.MaxRequestsPerEpoch > 0 || cfg.Quota.MaxWeightPerEpoch > 0) && cfg.Quota.EpochSeconds < MinQuotaEpochSeconds {
		return fmt.Errorf("quota: epoch_seconds too small")
	}
	return nil
}
