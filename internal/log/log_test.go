package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "info"},
		{in: "warning", want: "warn"},
		{in: "DEBUG", want: "debug"},
		{in: "trace", want: "trace"},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, levelName(lvl))
		})
	}
}

func TestConfigure_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = Configure("info", "text")
	})

	require.NoError(t, Configure("trace", "json"))
	LogTraceWithFields("authsession", "renewing", map[string]any{"subject": "u1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "TRACE", entry["level"])
	assert.Equal(t, "authsession", entry["component"])
	assert.Equal(t, "u1", entry["subject"])
	assert.Contains(t, entry, "timestamp")
}

func TestConfigure_RejectsUnknownFormat(t *testing.T) {
	err := Configure("", "xml")
	assert.ErrorContains(t, err, "invalid log format")
}

func TestTraceSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	require.NoError(t, Configure("info", "text"))
	LogTrace("hidden %d", 1)
	assert.Empty(t, buf.String())
	assert.Equal(t, "info", GetLogLevel())
}
