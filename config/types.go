package config

// Logging controls the structured log output. File enables a rotated log file
// next to stdout.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// EventLog selects the SQL store that archives committed events. Driver
// "none" disables the archive.
type EventLog struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Redis publishes committed events to a stream when Addr is set.
type Redis struct {
	Addr     string `toml:"Addr"`
	Password string `toml:"Password"`
	DB       int    `toml:"DB"`
	Stream   string `toml:"Stream"`
	MaxLen   int64  `toml:"MaxLen"`
}

// Telemetry configures OTLP/HTTP export. Both exporters are off by default.
type Telemetry struct {
	ServiceName string            `toml:"ServiceName"`
	Endpoint    string            `toml:"Endpoint"`
	Traces      bool              `toml:"Traces"`
	Metrics     bool              `toml:"Metrics"`
	Insecure    bool              `toml:"Insecure"`
	SampleRatio float64           `toml:"SampleRatio"`
	Headers     map[string]string `toml:"Headers"`
}

// RPC holds the HTTP surface limits. AdminSecret signs the bearer tokens that
// guard host_pause and host_resume; leaving it empty disables those methods.
type RPC struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes"`
	ReadTimeoutSecs    int     `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs   int     `toml:"WriteTimeoutSecs"`
	AdminSecret        string  `toml:"AdminSecret"`
	AdminSecretFile    string  `toml:"AdminSecretFile"`
	AdminSecretEnv     string  `toml:"AdminSecretEnv"`
}

// Quota defines per-address limits for mutating calls. Zero limits disable
// the check.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxWeightPerEpoch   uint64 `toml:"MaxWeightPerEpoch"` // grams
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}
