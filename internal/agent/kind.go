package agent

import (
	"fmt"

	"github.com/rs/zerolog"

	errs "master-agent/internal/errors"
)

// Kind identifies one of the five managed agent kinds.
type Kind string

const (
	KindStrategy    Kind = "strategy"
	KindRisk        Kind = "risk"
	KindResearch    Kind = "research"
	KindDeployment  Kind = "deployment"
	KindBacktesting Kind = "backtesting"
)

// Kinds lists all agent kinds in supervisor registration order.
func Kinds() []Kind {
	return []Kind{KindStrategy, KindRisk, KindResearch, KindDeployment, KindBacktesting}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStrategy, KindRisk, KindResearch, KindDeployment, KindBacktesting:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidAgentKind, s)
	}
}

// New constructs an uninitialized agent of the given kind. The switch is
// exhaustive over the Kind constants; an unknown kind is an error, never a
// nil agent.
func New(kind Kind, cfg Config, log zerolog.Logger) (Agent, error) {
	switch kind {
	case KindStrategy:
		return NewStrategy(cfg, log), nil
	case KindRisk:
		return NewRisk(cfg, log), nil
	case KindResearch:
		return NewResearch(cfg, log), nil
	case KindDeployment:
		return NewDeployment(cfg, log), nil
	case KindBacktesting:
		return NewBacktesting(cfg, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidAgentKind, kind)
	}
}
