package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsRenamedJSONKeys(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := Setup(&buf, Config{Service: "hubsim", Environment: "test"})
	require.NoError(t, err)

	logger.Info("ledger ready", "spokes", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "ledger ready", record["message"])
	require.Equal(t, "INFO", record["severity"])
	require.Equal(t, "hubsim", record["service"])
	require.Equal(t, "test", record["env"])
	require.Contains(t, record, "timestamp")
	require.EqualValues(t, 2, record["spokes"])
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := Setup(&buf, Config{Service: "hubsim", Level: "warn", Format: "text"})
	require.NoError(t, err)

	logger.Info("hidden")
	require.Zero(t, buf.Len())
	logger.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestSetupRejectsUnknownSettings(t *testing.T) {
	_, err := Setup(&bytes.Buffer{}, Config{Level: "loud"})
	require.Error(t, err)
	_, err = Setup(&bytes.Buffer{}, Config{Format: "xml"})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}
