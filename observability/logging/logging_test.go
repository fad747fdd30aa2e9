package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("call committed", MaskField("jwtSecret", "hunter2"), MaskField("method", "custody_submit"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "call committed", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Contains(t, line, "timestamp")
	require.Equal(t, RedactedValue, line["jwtSecret"])
	require.Equal(t, "custody_submit", line["method"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "  ", MaskField("redis_password", "  ").Value.String())
	require.Equal(t, RedactedValue, MaskField("redis_password", "hunter2").Value.String())
	require.Equal(t, "custody", MaskField(" Method ", "custody").Value.String())
	require.True(t, IsAllowlisted(" Severity "))
}

func TestMaskDSN(t *testing.T) {
	require.Equal(t, "postgres://scv:xxxxx@db:5432/events?sslmode=disable",
		MaskDSN("dsn", "postgres://scv:s3cret@db:5432/events?sslmode=disable").Value.String())
	require.Equal(t, "postgres://db/events", MaskDSN("dsn", "postgres://db/events").Value.String())
	require.Equal(t, RedactedValue, MaskDSN("dsn", "host=db user=scv password=s3cret dbname=events").Value.String())
	require.Equal(t, "file:events.db?_pragma=busy_timeout(5000)", MaskDSN("dsn", "file:events.db?_pragma=busy_timeout(5000)").Value.String())
	require.Equal(t, "", MaskDSN("dsn", "").Value.String())
}
