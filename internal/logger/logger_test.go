package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("info level by default", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, false)

		log.Debug("hidden")
		assert.Empty(t, buf.String())

		log.Info("visible", "key", "value")
		var entry map[string]any
		assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "visible", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("debug level when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, true)

		log.Debug("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}
