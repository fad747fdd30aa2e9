package config

import (
	nativecommon "scavenger/native/common"
	"scavenger/observability/logging"
	"scavenger/observability/otel"
)

// Limits converts the quota section into the runtime representation.
func (q Quota) Limits() nativecommon.Quota {
	return nativecommon.Quota{
		MaxRequestsPerEpoch: q.MaxRequestsPerEpoch,
		MaxWeightPerEpoch:   q.MaxWeightPerEpoch,
		EpochSeconds:        q.EpochSeconds,
	}
}

// Options converts the logging section into logger setup options.
func (l Logging) Options() logging.Options {
	return logging.Options{
		Level: l.Level,
		File: logging.FileOptions{
			Path:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
			Compress:   l.Compress,
		},
	}
}

// OTel converts the telemetry section into exporter configuration.
func (t Telemetry) OTel(env, network string) otel.Config {
	return otel.Config{
		ServiceName: t.ServiceName,
		Environment: env,
		Network:     network,
		Endpoint:    t.Endpoint,
		Metrics:     t.Metrics,
		Traces:      t.Traces,
		Insecure:    t.Insecure,
		Headers:     t.Headers,
		SampleRatio: t.SampleRatio,
	}
}
