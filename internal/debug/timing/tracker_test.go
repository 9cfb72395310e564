package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeClock(step time.Duration) func() time.Time {
	current := time.Unix(0, 0)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func TestTrackerRecordsStagesInOrder(t *testing.T) {
	tt := NewTracker()
	tt.now = fakeClock(10 * time.Millisecond)

	load := tt.StartTiming("load")
	tt.EndTiming(load)
	detect := tt.StartTiming("detect")
	tt.EndTiming(detect)

	stages := tt.Stages()
	assert.Equal(t, []Stage{
		{Operation: "load", Duration: 10 * time.Millisecond},
		{Operation: "detect", Duration: 10 * time.Millisecond},
	}, stages)

	summary := tt.Summary()
	assert.Equal(t, 10.0, summary["load_ms"])
	assert.Equal(t, 10.0, summary["detect_ms"])
}

func TestTrackerDisabledAndForeignContext(t *testing.T) {
	tt := NewTracker()
	tt.SetEnabled(false)

	ctx := tt.StartTiming("load")
	tt.EndTiming(ctx)
	tt.EndTiming(context.Background())

	assert.Empty(t, tt.Stages())

	tt.SetEnabled(true)
	tt.EndTiming(tt.StartTiming("x"))
	assert.Len(t, tt.Stages(), 1)
	tt.Reset()
	assert.Empty(t, tt.Stages())
}
