package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, ParseLevel("fatal"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("console"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: slog.LevelInfo, Format: FormatJSON})

	log.Debug("hidden")
	log.Info("aggregate published",
		Token(7),
		ProjectID("p1"),
		Latency(1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "aggregate published", entry["msg"])
	assert.Equal(t, float64(7), entry["token"])
	assert.Equal(t, "p1", entry["project_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestContextRoundTrip(t *testing.T) {
	log := Nop()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
	assert.Same(t, slog.Default(), OrDefault(nil))
}
