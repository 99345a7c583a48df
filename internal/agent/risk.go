package agent

import (
	"context"

	"github.com/rs/zerolog"

	errs "master-agent/internal/errors"
)

// Risk enforces the portfolio risk limits.
type Risk struct {
	*BaseAgent

	maxDrawdownPct         float64
	riskPerTradePct        float64
	maxPositionSizePct     float64
	maxCorrelatedPositions int
}

// NewRisk constructs an uninitialized risk agent.
func NewRisk(cfg Config, log zerolog.Logger) *Risk {
	return &Risk{
		BaseAgent:              NewBase(KindRisk, cfg, log),
		maxDrawdownPct:         configFloat(cfg, "max_drawdown_percent", 20),
		riskPerTradePct:        configFloat(cfg, "risk_per_trade_percent", 1),
		maxPositionSizePct:     configFloat(cfg, "max_position_size_percent", 20),
		maxCorrelatedPositions: configInt(cfg, "max_correlated_positions", 3),
	}
}

func (r *Risk) Initialize(ctx context.Context) error {
	if r.maxDrawdownPct <= 0 || r.maxDrawdownPct > 100 {
		return errs.NewValidationError("max_drawdown_percent", r.maxDrawdownPct, "must be in (0, 100]")
	}
	if r.riskPerTradePct <= 0 || r.riskPerTradePct > 100 {
		return errs.NewValidationError("risk_per_trade_percent", r.riskPerTradePct, "must be in (0, 100]")
	}
	if r.maxPositionSizePct <= 0 || r.maxPositionSizePct > 100 {
		return errs.NewValidationError("max_position_size_percent", r.maxPositionSizePct, "must be in (0, 100]")
	}
	if r.maxCorrelatedPositions <= 0 {
		return errs.NewValidationError("max_correlated_positions", r.maxCorrelatedPositions, "must be positive")
	}

	r.log.Info().
		Float64("max_drawdown_percent", r.maxDrawdownPct).
		Float64("risk_per_trade_percent", r.riskPerTradePct).
		Msg("Risk agent initialized")
	r.SetStatus(StatusActive)
	return nil
}

func (r *Risk) Run(ctx context.Context) error {
	return r.idle(ctx)
}

func (r *Risk) Shutdown(ctx context.Context) error {
	r.SetStatus(StatusStopped)
	return nil
}

func (r *Risk) ProcessMessage(ctx context.Context, msg Message) (Response, error) {
	if msg.Command == "limits" {
		return r.respond(map[string]interface{}{
			"max_drawdown_percent":      r.maxDrawdownPct,
			"risk_per_trade_percent":    r.riskPerTradePct,
			"max_position_size_percent": r.maxPositionSizePct,
			"max_correlated_positions":  r.maxCorrelatedPositions,
		}), nil
	}
	return r.dispatch(msg)
}
