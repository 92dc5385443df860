package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "autonomy.log")

	l, err := New(Config{Level: "debug", File: path, Quiet: true})
	require.NoError(t, err)

	l.For(CategoryProducer).Info("picked task", zap.String("task", "Add decay factor"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"logger":"producer"`)
	assert.Contains(t, line, `"task":"Add decay factor"`)
}

func TestFor_DisabledCategoryIsNop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autonomy.log")

	l, err := New(Config{
		Level:      "info",
		File:       path,
		Quiet:      true,
		Categories: map[string]bool{"tactile": false},
	})
	require.NoError(t, err)

	assert.False(t, l.Enabled(CategoryTactile))
	assert.True(t, l.Enabled(CategoryValidator))

	l.For(CategoryTactile).Info("hidden")
	l.For(CategoryValidator).Info("visible")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestFor_ReusesNamedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	a := l.For(CategoryScheduler)
	b := l.For(CategoryScheduler)
	assert.Same(t, a, b)

	a.Info("cycle started")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "scheduler", logs.All()[0].LoggerName)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.For(CategoryBoot).Info("nothing")
		l.Zap().Info("nothing")
		_ = l.Close()
	})
}

func TestTimer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	timer := StartTimer(zap.New(core), "git commit")
	elapsed := timer.Stop()

	assert.GreaterOrEqual(t, int64(elapsed), int64(0))
	require.Equal(t, 1, logs.Len())
	assert.True(t, strings.Contains(logs.All()[0].ContextMap()["op"].(string), "git"))
}
