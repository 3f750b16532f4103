package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	l, err := New(Config{Level: "", Format: "console"})
	assert.NoError(t, err)
	assert.True(t, l.level.Enabled(zapcore.InfoLevel))
	assert.False(t, l.level.Enabled(zapcore.DebugLevel))
}

func TestSetLevelAdjustsVerbosityInPlace(t *testing.T) {
	l, err := New(Config{Level: "info", Format: "json"})
	assert.NoError(t, err)

	assert.NoError(t, l.SetLevel("debug"))
	assert.True(t, l.level.Enabled(zapcore.DebugLevel))

	assert.NoError(t, l.SetLevel("error"))
	assert.False(t, l.level.Enabled(zapcore.WarnLevel))
	assert.True(t, l.level.Enabled(zapcore.ErrorLevel))
}
