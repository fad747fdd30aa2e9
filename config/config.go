package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	GenesisFile  string `toml:"GenesisFile"`
	NetworkName  string `toml:"NetworkName"`
	Environment  string `toml:"Environment"`
	AllowMigrate bool   `toml:"AllowMigrate"`

	Logging   Logging   `toml:"logging"`
	EventLog  EventLog  `toml:"eventlog"`
	Redis     Redis     `toml:"redis"`
	Telemetry Telemetry `toml:"telemetry"`
	RPC       RPC       `toml:"rpc"`
	Quota     Quota     `toml:"quota"`
}

// Load loads the configuration from the given path. A missing file is
// replaced with the defaults, which are written back to path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if err := cfg.resolvePaths(path); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:  ":8080",
		DataDir:     "./scavenger-data",
		NetworkName: "scavenger-local",
		Environment: "dev",
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		EventLog: EventLog{
			Driver: "sqlite",
			DSN:    "events.db",
		},
		Redis: Redis{
			Stream: "scavenger:events",
			MaxLen: 100000,
		},
		Telemetry: Telemetry{
			ServiceName: "scavengerd",
			Insecure:    true,
			SampleRatio: 1,
		},
		RPC: RPC{
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			MaxBodyBytes:       1 << 20,
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   15,
		},
		Quota: Quota{
			MaxRequestsPerEpoch: 600,
			MaxWeightPerEpoch:   5_000_000,
			EpochSeconds:        3600,
		},
	}
}

func (cfg *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = def.NetworkName
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = def.DataDir
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = def.Environment
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if strings.TrimSpace(cfg.EventLog.Driver) == "" {
		cfg.EventLog.Driver = def.EventLog.Driver
	}
	if strings.TrimSpace(cfg.Redis.Stream) == "" {
		cfg.Redis.Stream = def.Redis.Stream
	}
	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
	if cfg.RPC.MaxBodyBytes <= 0 {
		cfg.RPC.MaxBodyBytes = def.RPC.MaxBodyBytes
	}
}

// resolvePaths anchors relative file references at the config file's
// directory and loads the RPC admin secret from its file when configured.
func (cfg *Config) resolvePaths(configPath string) error {
	dir := filepath.Dir(configPath)
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	cfg.DataDir = anchor(cfg.DataDir)
	cfg.GenesisFile = anchor(cfg.GenesisFile)
	cfg.Logging.File = anchor(cfg.Logging.File)
	if cfg.EventLog.Driver == "sqlite" && cfg.EventLog.DSN != "" && !strings.HasPrefix(cfg.EventLog.DSN, "file:") && cfg.EventLog.DSN != ":memory:" {
		if !filepath.IsAbs(cfg.EventLog.DSN) {
			cfg.EventLog.DSN = filepath.Join(cfg.DataDir, cfg.EventLog.DSN)
		}
	}
	if cfg.RPC.AdminSecret == "" && cfg.RPC.AdminSecretFile != "" {
		raw, err := os.ReadFile(anchor(cfg.RPC.AdminSecretFile))
		if err != nil {
			return fmt.Errorf("read rpc admin secret: %w", err)
		}
		cfg.RPC.AdminSecret = strings.TrimSpace(string(raw))
	}
	if cfg.RPC.AdminSecret == "" && cfg.RPC.AdminSecretEnv != "" {
		cfg.RPC.AdminSecret = strings.TrimSpace(os.Getenv(cfg.RPC.AdminSecretEnv))
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
