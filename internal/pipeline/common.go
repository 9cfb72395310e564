package pipeline

import (
	"context"
)

// Logger is the structured logger every stage writes to.
type Logger interface {
	Debug(component string, message string, fields map[string]interface{})
	Info(component string, message string, fields map[string]interface{})
	Warning(component string, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}

type TimingTracker interface {
	StartTiming(operation string) context.Context
	EndTiming(ctx context.Context)
}

// runLogger stamps run_id on everything logged during one Run.
type runLogger struct {
	Logger
	runID string
}

func (l runLogger) stamp(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["run_id"] = l.runID
	return out
}

func (l runLogger) Debug(component, message string, fields map[string]interface{}) {
	l.Logger.Debug(component, message, l.stamp(fields))
}

func (l runLogger) Info(component, message string, fields map[string]interface{}) {
	l.Logger.Info(component, message, l.stamp(fields))
}

func (l runLogger) Warning(component, message string, fields map[string]interface{}) {
	l.Logger.Warning(component, message, l.stamp(fields))
}

func (l runLogger) Error(component string, err error, fields map[string]interface{}) {
	l.Logger.Error(component, err, l.stamp(fields))
}
