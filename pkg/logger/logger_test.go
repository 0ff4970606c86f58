package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LoggerConfig
		debugActive bool
	}{
		{name: "nil config", cfg: nil, debugActive: false},
		{name: "production", cfg: &LoggerConfig{Debug: false}, debugActive: false},
		{name: "debug", cfg: &LoggerConfig{Debug: true}, debugActive: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.debugActive, l.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		})
	}
}
