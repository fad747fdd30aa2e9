package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer abc, x-tenant = scv ,broken,=empty")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "scv",
	}, headers)
}

func TestInitDisabledIsNoop(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "scavengerd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestExportHeadersMergeEnvironment(t *testing.T) {
	cfg := Config{Headers: map[string]string{"x-tenant": "scv-main"}}
	lookup := func(key string) (string, bool) {
		if key == headersEnv {
			return "authorization=Bearer abc,x-tenant=ignored", true
		}
		return "", false
	}
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "scv-main",
	}, cfg.exportHeaders(lookup))
	require.Equal(t, map[string]string{"x-tenant": "scv-main"}, cfg.exportHeaders(nil))
}

func TestResourceCarriesNetwork(t *testing.T) {
	res, err := Config{ServiceName: "scavengerd", Environment: "dev", Network: "scv-local"}.resource()
	require.NoError(t, err)
	value, ok := res.Set().Value("scavenger.network")
	require.True(t, ok)
	require.Equal(t, "scv-local", value.AsString())
}

func TestSamplerRatio(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), Config{}.sampler().Description())
	require.Contains(t, Config{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}
