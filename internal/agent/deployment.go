package agent

import (
	"context"

	"github.com/rs/zerolog"
)

// Deployment promotes validated strategies into live operation. It takes no
// configuration.
type Deployment struct {
	*BaseAgent
}

// NewDeployment constructs an uninitialized deployment agent.
func NewDeployment(cfg Config, log zerolog.Logger) *Deployment {
	return &Deployment{BaseAgent: NewBase(KindDeployment, cfg, log)}
}

func (d *Deployment) Initialize(ctx context.Context) error {
	d.log.Info().Msg("Deployment agent initialized")
	d.SetStatus(StatusActive)
	return nil
}

func (d *Deployment) Run(ctx context.Context) error {
	return d.idle(ctx)
}

func (d *Deployment) Shutdown(ctx context.Context) error {
	d.SetStatus(StatusStopped)
	return nil
}

func (d *Deployment) ProcessMessage(ctx context.Context, msg Message) (Response, error) {
	return d.dispatch(msg)
}
