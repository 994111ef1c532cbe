package log_test

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/log"
)

func TestInit(t *testing.T) {
	require.NoError(t, log.Init(config.Logs{Level: 1, Encoder: config.EncoderTypeConsole}, io.Discard))
	assert.True(t, log.Logger().V(1).Enabled())
	assert.False(t, log.Logger().V(3).Enabled())

	assert.Error(t, log.Init(config.Logs{Encoder: "xml"}, io.Discard))
}

func TestJSONEncoder(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, log.Init(config.Logs{Encoder: config.EncoderTypeJson}, buf))

	log.Logger().Info("Hub started", "subscribers", 2)
	log.Logger().V(1).Info("not logged at level 0")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "Hub started", line["message"])
	assert.EqualValues(t, 2, line["subscribers"])
	assert.Contains(t, line, "ts")
}
