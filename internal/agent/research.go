package agent

import (
	"context"

	"github.com/rs/zerolog"

	errs "master-agent/internal/errors"
)

// Research evaluates candidate strategies against historical data.
type Research struct {
	*BaseAgent

	lookbackDays  int
	minConfidence float64
	maxDrawdown   float64
}

// NewResearch constructs an uninitialized research agent.
func NewResearch(cfg Config, log zerolog.Logger) *Research {
	return &Research{
		BaseAgent:     NewBase(KindResearch, cfg, log),
		lookbackDays:  configInt(cfg, "lookback_period", 90),
		minConfidence: configFloat(cfg, "min_confidence", 0.75),
		maxDrawdown:   configFloat(cfg, "max_drawdown", 0.20),
	}
}

func (r *Research) Initialize(ctx context.Context) error {
	if r.lookbackDays <= 0 {
		return errs.NewValidationError("lookback_period", r.lookbackDays, "must be positive")
	}
	if r.minConfidence <= 0 || r.minConfidence > 1 {
		return errs.NewValidationError("min_confidence", r.minConfidence, "must be in (0, 1]")
	}
	if r.maxDrawdown <= 0 || r.maxDrawdown > 1 {
		return errs.NewValidationError("max_drawdown", r.maxDrawdown, "must be in (0, 1]")
	}

	r.log.Info().
		Int("lookback_period", r.lookbackDays).
		Float64("min_confidence", r.minConfidence).
		Msg("Research agent initialized")
	r.SetStatus(StatusActive)
	return nil
}

func (r *Research) Run(ctx context.Context) error {
	return r.idle(ctx)
}

func (r *Research) Shutdown(ctx context.Context) error {
	r.SetStatus(StatusStopped)
	return nil
}

func (r *Research) ProcessMessage(ctx context.Context, msg Message) (Response, error) {
	return r.dispatch(msg)
}
