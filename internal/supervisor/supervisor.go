// Package supervisor orchestrates the agent fleet: it builds the core
// agents, watches their health, recovers failed ones in place, and tracks
// the portfolio equity curve for risk reporting.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"master-agent/internal/agent"
	"master-agent/internal/config"
	"master-agent/internal/environment"
	errs "master-agent/internal/errors"
	"master-agent/internal/ledger"
	"master-agent/internal/logging"
	"master-agent/internal/models"
	"master-agent/internal/monitor"
	"master-agent/internal/risk"
	"master-agent/internal/store"
)

// factory builds an uninitialized agent. Tests swap it to inject failing
// instances.
type factory func(kind agent.Kind, cfg agent.Config, log zerolog.Logger) (agent.Agent, error)

// Supervisor owns the agent registry and the health-check loop.
type Supervisor struct {
	log zerolog.Logger
	cfg config.SupervisorConfig

	mu       sync.RWMutex
	agents   map[string]agent.Agent
	order    []string
	equity   []float64
	lastTick time.Time

	collector *monitor.Collector
	ledger    *ledger.Ledger
	risk      *risk.Calculator
	env       environment.Environment
	journal   store.Journal
	newAgent  factory

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Deps bundles the collaborators the supervisor drives.
type Deps struct {
	Collector   *monitor.Collector
	Ledger      *ledger.Ledger
	Risk        *risk.Calculator
	Environment environment.Environment
	Journal     store.Journal
}

// New creates a Supervisor. Nil optional deps fall back to no-ops.
func New(cfg config.SupervisorConfig, deps Deps, log zerolog.Logger) *Supervisor {
	s := &Supervisor{
		log:       log,
		cfg:       cfg,
		agents:    make(map[string]agent.Agent),
		collector: deps.Collector,
		ledger:    deps.Ledger,
		risk:      deps.Risk,
		env:       deps.Environment,
		journal:   deps.Journal,
		newAgent:  agent.New,
		lastTick:  time.Now(),
	}
	if s.env == nil {
		s.env = environment.Nop{}
	}
	if s.journal == nil {
		s.journal = store.NopJournal{}
	}
	if s.risk == nil {
		s.risk = risk.NewCalculator(log)
	}
	s.equity = []float64{cfg.InitialInvestment}
	return s
}

// Initialize builds and initializes the core agents, starts metrics
// collection and the health loop, then prepares the trading environment.
// Any failure aborts startup.
func (s *Supervisor) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errs.ErrAlreadyRunning
	}
	s.running = true
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.log.Info().Msg("Initializing master agent system")

	if err := s.initializeCoreAgents(ctx); err != nil {
		s.teardownLoopState()
		return errs.Wrap(err, "failed to initialize core agents")
	}

	if s.collector != nil {
		s.collector.Start()
	}
	go s.healthLoop(loopCtx)

	if err := s.setupEnvironment(ctx); err != nil {
		s.Shutdown(ctx)
		return errs.Wrap(err, "failed to initialize trading environment")
	}

	s.log.Info().Msg("Master agent system initialized successfully")
	return nil
}

func (s *Supervisor) teardownLoopState() {
	s.mu.Lock()
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// initializeCoreAgents constructs the fixed agent set with the configured
// capital targets and initializes each in registration order.
func (s *Supervisor) initializeCoreAgents(ctx context.Context) error {
	coreConfigs := map[agent.Kind]agent.Config{
		agent.KindStrategy: {
			"initial_capital": s.cfg.InitialInvestment,
			"target_equity":   s.cfg.TargetEquity,
			"timeframe_years": s.cfg.TimeframeYears,
		},
		agent.KindRisk: {
			"max_drawdown_percent":      20.0,
			"risk_per_trade_percent":    1.0,
			"max_position_size_percent": 20.0,
			"max_correlated_positions":  3,
		},
		agent.KindResearch: {
			"lookback_period": 90,
			"min_confidence":  0.75,
			"max_drawdown":    0.20,
		},
		agent.KindDeployment: {},
		agent.KindBacktesting: {
			"initial_capital": s.cfg.InitialInvestment,
			"target_equity":   s.cfg.TargetEquity,
			"timeframe":       "1h",
		},
	}

	for _, kind := range agent.Kinds() {
		s.log.Info().Str("kind", string(kind)).Msg("Initializing core agent")

		a, err := s.newAgent(kind, coreConfigs[kind], s.log)
		if err != nil {
			return err
		}
		if err := a.Initialize(ctx); err != nil {
			return errs.NewAgentError(a.ID(), "initialize", err)
		}
		s.register(string(kind), a)
		s.logAgentEvent(a, "created", "")
	}
	return nil
}

func (s *Supervisor) setupEnvironment(ctx context.Context) error {
	if err := s.env.SetupExchange(ctx); err != nil {
		return errs.Wrap(err, "exchange setup failed")
	}
	if err := s.env.SetupDatabase(ctx); err != nil {
		return errs.Wrap(err, "database setup failed")
	}
	s.log.Info().Msg("Trading environment initialized successfully")
	return nil
}

// register inserts or replaces an agent under the given registry key,
// preserving insertion order.
func (s *Supervisor) register(key string, a agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[key]; !exists {
		s.order = append(s.order, key)
	}
	s.agents[key] = a
}

// CreateResult is the structured outcome of a CreateAgent call.
type CreateResult struct {
	Status  string `json:"status"`
	AgentID string `json:"agent_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateAgent builds, initializes, and registers a dynamic agent under its
// own id. Failures come back as a structured result, never a panic to the
// caller.
func (s *Supervisor) CreateAgent(ctx context.Context, kindName string, cfg agent.Config) CreateResult {
	kind, err := agent.ParseKind(kindName)
	if err != nil {
		s.log.Error().Err(err).Str("kind", kindName).Msg("Failed to create agent")
		return CreateResult{Status: "error", Message: err.Error()}
	}

	a, err := s.newAgent(kind, cfg, s.log)
	if err != nil {
		s.log.Error().Err(err).Str("kind", kindName).Msg("Failed to create agent")
		return CreateResult{Status: "error", Message: err.Error()}
	}
	if err := a.Initialize(ctx); err != nil {
		s.log.Error().Err(err).Str("kind", kindName).Msg("Failed to initialize agent")
		return CreateResult{Status: "error", Message: err.Error()}
	}

	s.register(a.ID(), a)
	s.logAgentEvent(a, "created", "dynamic")
	s.log.Info().Str("kind", kindName).Str("agent_id", a.ID()).Msg("Created new agent")
	return CreateResult{Status: "success", AgentID: a.ID()}
}

// AgentSummary is the registry view exposed to the API layer.
type AgentSummary struct {
	ID     string       `json:"id"`
	Kind   agent.Kind   `json:"kind"`
	Status string       `json:"status"`
	Config agent.Config `json:"config"`
}

// ListAgents returns all registered agents in insertion order.
func (s *Supervisor) ListAgents() []AgentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AgentSummary, 0, len(s.order))
	for _, key := range s.order {
		a := s.agents[key]
		out = append(out, AgentSummary{
			ID:     a.ID(),
			Kind:   a.Kind(),
			Status: a.Status(),
			Config: a.Config(),
		})
	}
	return out
}

// healthLoop ticks every HealthCheckTick and runs a health decision once
// the HealthCheckInterval has elapsed since the last one. A panicking tick
// is recovered and the loop continues.
func (s *Supervisor) healthLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.HealthCheckTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

func (s *Supervisor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Health check failed")
		}
	}()
	s.tick(ctx, time.Now())
}

// tick runs one health decision if the decision interval has elapsed.
// Exposed to package tests, which drive it directly with synthetic clocks.
func (s *Supervisor) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := now.Sub(s.lastTick) >= s.cfg.HealthCheckInterval
	if due {
		s.lastTick = now
	}
	s.mu.Unlock()

	if !due {
		return
	}

	s.log.Info().Msg("Running system health checks")

	if s.collector != nil {
		if snapshot, ok := s.collector.CurrentMetrics(); ok {
			s.log.Info().
				Float64("cpu_percent", snapshot.CPUPercent).
				Float64("memory_percent", snapshot.Memory.Percent).
				Msg("System metrics at health check")
		}
	}

	s.recordEquityPoint()

	for _, key := range s.registryKeys() {
		a := s.lookup(key)
		if a == nil || a.Status() == agent.StatusActive {
			continue
		}
		s.log.Warn().
			Str("agent_id", a.ID()).
			Str("status", a.Status()).
			Msg("Agent is not active")
		s.recoverAgent(ctx, key, a)
	}
}

func (s *Supervisor) registryKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

func (s *Supervisor) lookup(key string) agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agents[key]
}

// recoverAgent re-initializes a failed agent in place; if that leaves it
// non-active, a fresh instance of the same kind and config replaces it in
// the same registry slot. Recovery failures are logged and retried at the
// next decision interval.
func (s *Supervisor) recoverAgent(ctx context.Context, key string, a agent.Agent) {
	s.log.Info().Str("agent_id", a.ID()).Msg("Attempting to recover agent")

	err := a.Initialize(ctx)
	logging.LogRecovery(s.log, a.ID(), "reinitialize", err)
	if a.Status() == agent.StatusActive {
		s.logAgentEvent(a, "recovered", "reinitialized in place")
		return
	}

	replacement, err := s.newAgent(a.Kind(), a.Config(), s.log)
	if err != nil {
		s.log.Error().Err(err).Str("agent_id", a.ID()).Msg("Failed to build replacement agent")
		return
	}
	if err := replacement.Initialize(ctx); err != nil {
		s.log.Error().
			Err(errs.NewRecoveryError(a.ID(), "replacement", err)).
			Msg("Failed to recover agent")
		return
	}

	s.register(key, replacement)
	s.logAgentEvent(replacement, "replaced", fmt.Sprintf("replaced %s", a.ID()))
	s.log.Info().
		Str("agent_id", a.ID()).
		Str("replacement_id", replacement.ID()).
		Msg("Agent replaced after failed recovery")
}

// maxEquityPoints bounds the retained equity curve, oldest points evicted
// first.
const maxEquityPoints = 1000

// recordEquityPoint appends the current portfolio equity to the curve used
// for risk reporting.
func (s *Supervisor) recordEquityPoint() {
	if s.ledger == nil {
		return
	}
	equity := s.cfg.InitialInvestment + s.ledger.RealizedPnL() + s.ledger.UnrealizedPnL()

	s.mu.Lock()
	s.equity = append(s.equity, equity)
	if len(s.equity) > maxEquityPoints {
		s.equity = s.equity[len(s.equity)-maxEquityPoints:]
	}
	s.mu.Unlock()
}

// EquityCurve returns a copy of the tracked equity series.
func (s *Supervisor) EquityCurve() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	curve := make([]float64, len(s.equity))
	copy(curve, s.equity)
	return curve
}

// RiskReport bundles current positions with the aggregate risk metrics
// computed over the tracked equity curve.
type RiskReport struct {
	Positions []models.Position `json:"positions"`
	Metrics   risk.Metrics      `json:"metrics"`
}

// Report computes the current risk report. Position return series feed the
// correlation matrix when provided.
func (s *Supervisor) Report(positionReturns []risk.PositionReturns) RiskReport {
	curve := s.EquityCurve()
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		if curve[i-1] != 0 {
			returns = append(returns, (curve[i]-curve[i-1])/curve[i-1])
		}
	}

	var positions []models.Position
	if s.ledger != nil {
		positions = s.ledger.Positions()
	}

	return RiskReport{
		Positions: positions,
		Metrics:   s.risk.AggregateRiskMetrics(positionReturns, returns, curve),
	}
}

func (s *Supervisor) logAgentEvent(a agent.Agent, event, detail string) {
	err := s.journal.LogAgentEvent(context.Background(), &models.AgentEvent{
		AgentID:   a.ID(),
		Kind:      string(a.Kind()),
		Event:     event,
		Detail:    detail,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("agent_id", a.ID()).Msg("Failed to journal agent event")
	}
}

// Shutdown stops the health loop and collector, then shuts agents down in
// reverse registration order. Agent shutdown errors are logged, not
// propagated.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errs.ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	s.log.Info().Msg("Shutting down master agent system")

	cancel()
	<-done

	if s.collector != nil {
		s.collector.Stop()
	}

	keys := s.registryKeys()
	for i := len(keys) - 1; i >= 0; i-- {
		a := s.lookup(keys[i])
		if a == nil {
			continue
		}
		if err := a.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Str("agent_id", a.ID()).Msg("Agent shutdown failed")
		}
	}

	if err := s.env.Close(); err != nil {
		s.log.Error().Err(err).Msg("Environment close failed")
	}

	s.log.Info().Msg("Master agent system stopped")
	return nil
}
