package agent

import (
	"context"

	"github.com/rs/zerolog"

	errs "master-agent/internal/errors"
)

var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "4h": true, "1d": true,
}

// Backtesting replays strategies over historical candles.
type Backtesting struct {
	*BaseAgent

	initialCapital float64
	targetEquity   float64
	timeframe      string
}

// NewBacktesting constructs an uninitialized backtesting agent.
func NewBacktesting(cfg Config, log zerolog.Logger) *Backtesting {
	return &Backtesting{
		BaseAgent:      NewBase(KindBacktesting, cfg, log),
		initialCapital: configFloat(cfg, "initial_capital", 500),
		targetEquity:   configFloat(cfg, "target_equity", 1_000_000),
		timeframe:      configString(cfg, "timeframe", "1h"),
	}
}

func (b *Backtesting) Initialize(ctx context.Context) error {
	if b.initialCapital <= 0 {
		return errs.NewValidationError("initial_capital", b.initialCapital, "must be positive")
	}
	if !validTimeframes[b.timeframe] {
		return errs.NewValidationError("timeframe", b.timeframe, "unsupported timeframe")
	}

	b.log.Info().Str("timeframe", b.timeframe).Msg("Backtesting agent initialized")
	b.SetStatus(StatusActive)
	return nil
}

func (b *Backtesting) Run(ctx context.Context) error {
	return b.idle(ctx)
}

func (b *Backtesting) Shutdown(ctx context.Context) error {
	b.SetStatus(StatusStopped)
	return nil
}

func (b *Backtesting) ProcessMessage(ctx context.Context, msg Message) (Response, error) {
	return b.dispatch(msg)
}
