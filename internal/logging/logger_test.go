package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"mindmix/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindmix.log")

	logger, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	logger.Info("hello", zapcore.Field{Key: "user_id", Type: zapcore.StringType, String: "u1"})
	logger.Debug("filtered out")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"user_id":"u1"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestNew_RejectsBadRotationSize(t *testing.T) {
	_, err := New(config.LogConfig{File: filepath.Join(t.TempDir(), "x.log"), MaxSizeMB: 0})
	assert.Error(t, err)
}
