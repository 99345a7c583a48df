// Package agent defines the lifecycle contract shared by all managed agents
// and the five concrete kinds the supervisor runs.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"master-agent/internal/logging"
)

// maxErrors is the consecutive error count at which an agent's status flips
// to "error" and it becomes a recovery candidate.
const maxErrors = 3

// Agent statuses.
const (
	StatusInitialized = "initialized"
	StatusActive      = "active"
	StatusError       = "error"
	StatusStopped     = "stopped"
)

// Config is the opaque per-agent configuration map.
type Config map[string]interface{}

// Message is a command sent to an agent.
type Message struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response is an agent's answer to a message.
type Response map[string]interface{}

// HealthReport is the point-in-time health view of an agent.
type HealthReport struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"last_update"`
	ErrorCount int       `json:"error_count"`
}

// Agent is the lifecycle contract every managed agent implements.
// Implementations must be safe for concurrent use; the supervisor's health
// loop and the API layer call into agents from different goroutines.
type Agent interface {
	Initialize(ctx context.Context) error
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
	ProcessMessage(ctx context.Context, msg Message) (Response, error)
	HealthCheck() HealthReport

	ID() string
	Kind() Kind
	Status() string
	Config() Config
	ErrorCount() int
	LastUpdate() time.Time
}

// BaseAgent carries the state common to all agent kinds. Concrete agents
// embed it and provide Initialize, Run, Shutdown, and ProcessMessage.
type BaseAgent struct {
	log zerolog.Logger

	mu         sync.Mutex
	id         string
	kind       Kind
	status     string
	config     Config
	lastUpdate time.Time
	errorCount int
}

// NewBase constructs the shared agent core. The id embeds the construction
// timestamp so replacement instances of the same kind stay distinguishable.
func NewBase(kind Kind, cfg Config, log zerolog.Logger) *BaseAgent {
	if cfg == nil {
		cfg = Config{}
	}
	id := fmt.Sprintf("%s_%s", kind, time.Now().Format("20060102_150405"))
	return &BaseAgent{
		log:        logging.WithAgent(log, id),
		id:         id,
		kind:       kind,
		status:     StatusInitialized,
		config:     cfg,
		lastUpdate: time.Now(),
	}
}

func (b *BaseAgent) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

func (b *BaseAgent) Kind() Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kind
}

func (b *BaseAgent) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Config returns a copy of the agent's configuration.
func (b *BaseAgent) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := make(Config, len(b.config))
	for k, v := range b.config {
		cfg[k] = v
	}
	return cfg
}

func (b *BaseAgent) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errorCount
}

func (b *BaseAgent) LastUpdate() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdate
}

// SetStatus updates the agent's status and stamps last_update.
func (b *BaseAgent) SetStatus(status string) {
	b.mu.Lock()
	b.status = status
	b.lastUpdate = time.Now()
	b.mu.Unlock()

	b.log.Info().Str("status", status).Msg("Agent status updated")
}

// RecordError increments the error count and flips the agent to the error
// status once the threshold is reached.
func (b *BaseAgent) RecordError(err error) {
	b.mu.Lock()
	b.errorCount++
	count := b.errorCount
	tripped := count >= maxErrors && b.status != StatusError
	if tripped {
		b.status = StatusError
		b.lastUpdate = time.Now()
	}
	b.mu.Unlock()

	b.log.Error().Err(err).Int("error_count", count).Msg("Agent error")
	if tripped {
		b.log.Error().Msg("Agent exceeded maximum error count")
	}
}

// HealthCheck reports the agent's current lifecycle state.
func (b *BaseAgent) HealthCheck() HealthReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	return HealthReport{
		ID:         b.id,
		Kind:       b.kind,
		Status:     b.status,
		LastUpdate: b.lastUpdate,
		ErrorCount: b.errorCount,
	}
}

// idle blocks until the context is cancelled. Concrete agents use it as the
// body of Run until they grow real work loops.
func (b *BaseAgent) idle(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// respond builds the shared portion of a command response.
func (b *BaseAgent) respond(extra map[string]interface{}) Response {
	resp := Response{
		"agent_id": b.ID(),
		"status":   b.Status(),
	}
	for k, v := range extra {
		resp[k] = v
	}
	return resp
}

// dispatch handles the command set common to all agents. Unknown commands
// count as agent errors.
func (b *BaseAgent) dispatch(msg Message) (Response, error) {
	switch msg.Command {
	case "ping":
		return b.respond(map[string]interface{}{"pong": true}), nil
	case "status":
		report := b.HealthCheck()
		return b.respond(map[string]interface{}{
			"error_count": report.ErrorCount,
			"last_update": report.LastUpdate,
		}), nil
	case "config":
		return b.respond(map[string]interface{}{"config": b.Config()}), nil
	default:
		err := fmt.Errorf("unknown command: %q", msg.Command)
		b.RecordError(err)
		return nil, err
	}
}
