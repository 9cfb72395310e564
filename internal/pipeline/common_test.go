package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
)

func TestRunLoggerStampsEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	log := runLogger{Logger: logger.NewZerolog(&buf, zerolog.DebugLevel), runID: "run-1"}

	fields := map[string]interface{}{"stage": "detect"}
	log.Debug("Test", "debug", fields)
	log.Info("Test", "info", nil)
	log.Warning("Test", "warning", nil)
	log.Error("Test", errors.New("boom"), nil)

	_, mutated := fields["run_id"]
	assert.False(t, mutated, "caller fields are left untouched")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		assert.Equal(t, "run-1", event["run_id"])
		assert.Equal(t, "Test", event["component"])
	}
}
