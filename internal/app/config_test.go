package app

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name    string
		in      Config
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "missing project dir",
			in:      Config{},
			wantErr: "ProjectDir is a required configuration field",
		},
		{
			name: "defaults",
			in:   Config{ProjectDir: dir},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, filepath.Join(dir, ".snapforge"), cfg.WorkDir)
				assert.Equal(t, 1, cfg.Workers)
				assert.Positive(t, cfg.Parallel)
				assert.Equal(t, "text", cfg.LogFormat)
				assert.Equal(t, "info", cfg.LogLevel)
			},
		},
		{
			name: "explicit work dir and upper-case format",
			in:   Config{ProjectDir: dir, WorkDir: filepath.Join(dir, "w"), LogFormat: "JSON", LogLevel: "Debug"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, filepath.Join(dir, "w"), cfg.WorkDir)
				assert.Equal(t, "json", cfg.LogFormat)
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
		{
			name:    "negative workers",
			in:      Config{ProjectDir: dir, Workers: -2},
			wantErr: "invalid workers -2",
		},
		{
			name:    "bad log format",
			in:      Config{ProjectDir: dir, LogFormat: "xml"},
			wantErr: "invalid log-format",
		},
		{
			name:    "bad log level",
			in:      Config{ProjectDir: dir, LogLevel: "trace"},
			wantErr: "invalid log-level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.in)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var jsonOut bytes.Buffer
	newLogger("info", "json", &jsonOut).Info("Plan computed.", "operations", 3)
	assert.Contains(t, jsonOut.String(), `"msg":"Plan computed."`)
	assert.Contains(t, jsonOut.String(), `"operations":3`)

	var textOut bytes.Buffer
	logger := newLogger("warn", "text", &textOut)
	logger.Info("hidden")
	logger.Warn("Shown.", "part", "app")
	assert.NotContains(t, textOut.String(), "hidden")
	assert.Contains(t, textOut.String(), "Shown.")
	assert.Contains(t, textOut.String(), "part=app")
}
