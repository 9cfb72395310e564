package timing

import (
	"context"
	"sync"
	"time"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Stage is one recorded measurement, kept in completion order.
type Stage struct {
	Operation string
	Duration  time.Duration
}

type Tracker struct {
	stages  []Stage
	mu      sync.RWMutex
	enabled bool
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		enabled: true,
		now:     time.Now,
	}
}

func (tt *Tracker) StartTiming(operation string) context.Context {
	tt.mu.RLock()
	enabled := tt.enabled
	tt.mu.RUnlock()

	if !enabled {
		return context.Background()
	}

	return context.WithValue(context.Background(), timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: tt.now(),
	})
}

func (tt *Tracker) EndTiming(ctx context.Context) {
	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return
	}

	duration := tt.now().Sub(timingInfo.StartTime)

	tt.mu.Lock()
	tt.stages = append(tt.stages, Stage{Operation: timingInfo.Operation, Duration: duration})
	tt.mu.Unlock()
}

func (tt *Tracker) Stages() []Stage {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	result := make([]Stage, len(tt.stages))
	copy(result, tt.stages)
	return result
}

// Summary totals durations per operation, in milliseconds, for log fields.
func (tt *Tracker) Summary() map[string]interface{} {
	totals := make(map[string]time.Duration)
	for _, stage := range tt.Stages() {
		totals[stage.Operation] += stage.Duration
	}

	result := make(map[string]interface{}, len(totals))
	for operation, total := range totals {
		result[operation+"_ms"] = float64(total.Microseconds()) / 1000.0
	}
	return result
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) Reset() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stages = nil
}
