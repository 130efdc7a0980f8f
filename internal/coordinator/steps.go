package coordinator

import "context"

// FuncStep adapts a pair of functions to Step. A nil Compensate means the
// step has nothing to undo.
type FuncStep struct {
	StepName     string
	ExecuteFn    func(ctx context.Context) error
	CompensateFn func(ctx context.Context) error
}

// NewStep is the constructor for FuncStep.
func NewStep(name string, execute, compensate func(ctx context.Context) error) *FuncStep {
	return &FuncStep{StepName: name, ExecuteFn: execute, CompensateFn: compensate}
}

func (s *FuncStep) Name() string { return s.StepName }

func (s *FuncStep) Execute(ctx context.Context) error {
	return s.ExecuteFn(ctx)
}

func (s *FuncStep) Compensate(ctx context.Context) error {
	if s.CompensateFn == nil {
		return nil
	}
	return s.CompensateFn(ctx)
}
