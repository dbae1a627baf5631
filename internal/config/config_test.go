package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.SpeakDelay)
	assert.Equal(t, "localhost:8787", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
token: from-file
speak_delay: 750ms
speech_command: "espeak-ng -v de {text}"
log_level: debug
`), 0o644))

	t.Setenv(EnvPrefix+"TOKEN", "from-env")
	t.Setenv(EnvPrefix+"SPEED", "2")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, 750*time.Millisecond, cfg.SpeakDelay)
	assert.Equal(t, float64(2), cfg.Speed)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.SpeechDisabled())
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [1, 2"), 0o644))
	_, err := LoadFile(bad)
	assert.Error(t, err)

	t.Run("invalid env", func(t *testing.T) {
		t.Setenv(EnvPrefix+"PORT", "eighty")
		_, err := LoadFile("")
		assert.Error(t, err)
	})
	t.Run("out of range", func(t *testing.T) {
		t.Setenv(EnvPrefix+"PORT", "70000")
		_, err := LoadFile("")
		assert.Error(t, err)
	})
	t.Run("bad level", func(t *testing.T) {
		t.Setenv(EnvPrefix+"LOG_LEVEL", "loud")
		_, err := LoadFile("")
		assert.Error(t, err)
	})
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"CONFIG", "/tmp/fp.yaml")
	assert.Equal(t, "/tmp/fp.yaml", Path())
}

func TestSpeechDisabled(t *testing.T) {
	cfg := Default()
	cfg.SpeechCommand = "OFF"
	assert.True(t, cfg.SpeechDisabled())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.in)
		if test.err {
			assert.Error(t, err, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}
