// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidAgentKind = errors.New("invalid agent kind")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrLimitExceeded    = errors.New("risk limit exceeded")
	ErrZeroStopLoss     = errors.New("stop loss percent must be positive")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrAlreadyRunning   = errors.New("already running")
	ErrNotRunning       = errors.New("not running")
	ErrDatabaseError    = errors.New("database error")
	ErrTimeout          = errors.New("operation timed out")
)

// AgentError represents an error from a worker agent.
type AgentError struct {
	AgentID   string
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s] %s: %v", e.AgentID, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(agentID, operation string, err error) *AgentError {
	return &AgentError{
		AgentID:   agentID,
		Operation: operation,
		Err:       err,
	}
}

// RecoveryError represents a failed recovery attempt for an agent.
type RecoveryError struct {
	AgentID string
	Stage   string // reinitialize, replace
	Err     error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery error [%s] during %s: %v", e.AgentID, e.Stage, e.Err)
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

// NewRecoveryError creates a new RecoveryError.
func NewRecoveryError(agentID, stage string, err error) *RecoveryError {
	return &RecoveryError{
		AgentID: agentID,
		Stage:   stage,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// RiskError represents a risk limit violation.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
