package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Verbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		logInfo   bool
		logDebug  bool
	}{
		{name: "default logs warnings only", verbosity: 0},
		{name: "single v logs info", verbosity: 1, logInfo: true},
		{name: "double v logs debug", verbosity: 2, logInfo: true, logDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Verbosity: tt.verbosity, Output: &buf})

			logger.Warn("warn message")
			logger.Info("info message")
			logger.Debug("debug message")

			out := buf.String()
			assert.Contains(t, out, "warn message")
			assert.Equal(t, tt.logInfo, bytes.Contains(buf.Bytes(), []byte("info message")), out)
			assert.Equal(t, tt.logDebug, bytes.Contains(buf.Bytes(), []byte("debug message")), out)
		})
	}
}

func TestContextLogger(t *testing.T) {
	t.Run("missing logger falls back to discard", func(t *testing.T) {
		logger := FromContext(context.Background())
		require.NotNil(t, logger)
		assert.False(t, logger.Enabled(context.Background(), 12))
	})

	t.Run("stored logger is returned", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Output: &buf})
		ctx := WithLogger(context.Background(), logger)

		FromContext(ctx).Error("boom")
		assert.Contains(t, buf.String(), "boom")
	})
}
