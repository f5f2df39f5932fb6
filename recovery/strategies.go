package recovery

import (
	"context"
	"fmt"

	"github.com/wudi/blackout/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy repairs what it can and keeps going. Every error it absorbs
// is logged and kept in Errors.
type LenientStrategy struct {
	Logger observability.Logger
	Errors []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	return &LenientStrategy{Logger: observability.Or(logger)}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	if ctx != nil && ctx.Err() != nil {
		return ActionFail
	}
	s.Errors = append(s.Errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	observability.Or(s.Logger).Warn("recovered from malformed input",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.Error("error", err),
	)
	return ActionFix
}

// Default is the strategy used when a Config leaves Recovery unset.
func Default(logger observability.Logger) Strategy { return NewLenientStrategy(logger) }
