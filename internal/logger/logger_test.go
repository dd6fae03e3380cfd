package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerDefaultsToNop(t *testing.T) {
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() {
		Logger.Infow("before initialize", FieldCount, 1)
	})
}

func TestInitialize(t *testing.T) {
	orig := Logger
	defer func() { Logger = orig; JSONOutput = false }()

	require.NoError(t, Initialize(true, false))
	assert.True(t, JSONOutput)

	require.NoError(t, Initialize(false, true))
	assert.False(t, JSONOutput)
	assert.True(t, Logger.Desugar().Core().Enabled(-1), "verbose enables debug")
}

func TestComponentLogger(t *testing.T) {
	l := ComponentLogger("pipeline")
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Debugw("hello", FieldStage, "evaluate") })
}
