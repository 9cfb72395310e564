package chain

import (
	"context"
	"fmt"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// ProcessingStep transforms one owned Mat into a new one. Steps never close
// their input.
type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error)
	Name() string
}

// StepObserver is told about each finished step.
type StepObserver func(step string, output *safe.Mat)

type ProcessingChain struct {
	steps    []ProcessingStep
	observer StepObserver
}

func NewProcessingChain(steps ...ProcessingStep) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

func (pc *ProcessingChain) Observe(observer StepObserver) *ProcessingChain {
	pc.observer = observer
	return pc
}

// Execute runs every step in order. The input stays owned by the caller;
// intermediates are closed as soon as the next step has consumed them. With no
// steps the result is an owned copy of input.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "ProcessingChain"); err != nil {
		return nil, err
	}

	if len(pc.steps) == 0 {
		return input.Crop(input.Bounds(), input.Tag()+"_copy")
	}

	current := input
	release := func() {
		if current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		default:
		}

		result, err := step.Apply(ctx, current)
		if err != nil {
			release()
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		release()
		current = result

		if pc.observer != nil {
			pc.observer(step.Name(), current)
		}
	}

	return current, nil
}

func (pc *ProcessingChain) AddStep(step ProcessingStep) {
	pc.steps = append(pc.steps, step)
}

func (pc *ProcessingChain) StepCount() int {
	return len(pc.steps)
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
