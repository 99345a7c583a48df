package agent

import (
	"context"

	"github.com/rs/zerolog"

	errs "master-agent/internal/errors"
)

// Strategy plans capital growth toward a target equity over a fixed
// timeframe.
type Strategy struct {
	*BaseAgent

	initialCapital float64
	targetEquity   float64
	timeframeYears int
}

// NewStrategy constructs an uninitialized strategy agent.
func NewStrategy(cfg Config, log zerolog.Logger) *Strategy {
	return &Strategy{
		BaseAgent:      NewBase(KindStrategy, cfg, log),
		initialCapital: configFloat(cfg, "initial_capital", 500),
		targetEquity:   configFloat(cfg, "target_equity", 1_000_000),
		timeframeYears: configInt(cfg, "timeframe_years", 5),
	}
}

func (s *Strategy) Initialize(ctx context.Context) error {
	if s.initialCapital <= 0 {
		return errs.NewValidationError("initial_capital", s.initialCapital, "must be positive")
	}
	if s.targetEquity <= s.initialCapital {
		return errs.NewValidationError("target_equity", s.targetEquity, "must exceed initial capital")
	}
	if s.timeframeYears <= 0 {
		return errs.NewValidationError("timeframe_years", s.timeframeYears, "must be positive")
	}

	s.log.Info().
		Float64("initial_capital", s.initialCapital).
		Float64("target_equity", s.targetEquity).
		Int("timeframe_years", s.timeframeYears).
		Msg("Strategy agent initialized")
	s.SetStatus(StatusActive)
	return nil
}

func (s *Strategy) Run(ctx context.Context) error {
	return s.idle(ctx)
}

func (s *Strategy) Shutdown(ctx context.Context) error {
	s.SetStatus(StatusStopped)
	return nil
}

func (s *Strategy) ProcessMessage(ctx context.Context, msg Message) (Response, error) {
	if msg.Command == "target" {
		return s.respond(map[string]interface{}{
			"initial_capital": s.initialCapital,
			"target_equity":   s.targetEquity,
			"timeframe_years": s.timeframeYears,
		}), nil
	}
	return s.dispatch(msg)
}
