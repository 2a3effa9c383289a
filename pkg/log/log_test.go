package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitTestLogger(t *testing.T) {
	lg, props, err := InitTestLogger(t, &Config{Level: "debug", Format: FormatJSON})
	require.NoError(t, err)
	require.NotNil(t, props)
	lg.Info("decoded", FieldVersion(4), FieldTag('['), FieldOffset(3))
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitTestLogger(t, &Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFieldTag(t *testing.T) {
	assert.Equal(t, "0x5b('[')", FieldTag('[').String)
	assert.Equal(t, "0x80", FieldTag(0x80).String)
}

func TestCtxFields(t *testing.T) {
	ctx := WithModule(context.Background(), "marshal")
	l := Ctx(ctx)
	require.NotNil(t, l)
	assert.Same(t, l, Ctx(ctx))
	assert.NotNil(t, Ctx(context.Background()))

	ctx = WithLevel(ctx, zapcore.ErrorLevel)
	assert.False(t, Ctx(ctx).Core().Enabled(zapcore.InfoLevel))
}

func TestLevel(t *testing.T) {
	old := GetLevel()
	defer SetLevel(old)
	SetLevel(zapcore.WarnLevel)
	assert.Equal(t, zapcore.WarnLevel, GetLevel())
	assert.Equal(t, zapcore.WarnLevel, Level().Level())
}

func TestRateGroup(t *testing.T) {
	l := With(zap.String("k", "v")).WithRateGroup("test", 1, 1)
	assert.True(t, l.RatedInfo(1, "first"))
	assert.False(t, l.RatedInfo(1, "second"))
	assert.True(t, RatedInfo(0, "global"))
}
