package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/display-support/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("chatty"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "error"}, config.AppConfig{Name: "display-support", Env: "test"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))

	cli, err := NewCLILogger("debug")
	require.NoError(t, err)
	assert.True(t, cli.Core().Enabled(zapcore.DebugLevel))
}
