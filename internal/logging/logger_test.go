package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LogLevel
		wantErr bool
	}{
		{name: "upper case", input: "DEBUG", want: LevelDebug},
		{name: "lower case", input: "trace", want: LevelTrace},
		{name: "padded", input: " warn ", want: LevelWarn},
		{name: "unknown", input: "loud", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("TEST")
	logger.SetOutput(&buf, false)
	logger.SetLevel(LevelWarn)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] TEST: shown 2")
}

func TestWithPrefixSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger("TEST")
	parent.SetOutput(&buf, false)
	child := parent.WithPrefix("child")

	child.Debug("before")
	require.NotContains(t, buf.String(), "before")

	parent.SetLevel(LevelDebug)
	child.Debug("after")

	assert.Equal(t, LevelDebug, child.Level())
	assert.Contains(t, buf.String(), "[DEBUG] child: after")
}
