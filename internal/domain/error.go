package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConfig             = errors.New("config unavailable")
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrDuplicateProvider  = errors.New("duplicate provider")
	ErrRefused            = errors.New("connection refused")
	ErrTimeout            = errors.New("connection timed out")
	ErrProtocol           = errors.New("protocol error")
	ErrCancelled          = errors.New("connection cancelled")
	ErrAggregation        = errors.New("aggregation failed")
	ErrRunExhausted       = errors.New("discovery exhausted")
	ErrCacheUnavailable   = errors.New("tool cache unavailable")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrExecutableNotFound = errors.New("executable not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidSettings    = errors.New("invalid settings")
)

// FailureKind classifies a failed connection attempt.
type FailureKind string

const (
	FailureRefused  FailureKind = "refused"
	FailureTimeout  FailureKind = "timeout"
	FailureProtocol FailureKind = "protocol"
	// FailureCancelled marks an attempt cut short by run cancellation.
	FailureCancelled FailureKind = "cancelled"
)

// ContextFailureKind maps the error of a finished context to the failure it
// caused.
func ContextFailureKind(err error) FailureKind {
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}
	return FailureTimeout
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureRefused:
		return ErrRefused
	case FailureTimeout:
		return ErrTimeout
	case FailureProtocol:
		return ErrProtocol
	case FailureCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// ConfigError reports a configuration file that could not be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ConnectError reports a failed attempt against one provider.
type ConnectError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func NewConnectError(provider string, kind FailureKind, err error) *ConnectError {
	return &ConnectError{Provider: provider, Kind: kind, Err: err}
}

func (e *ConnectError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel := e.Kind.sentinel()
	return sentinel != nil && target == sentinel
}

// FailureKindOf extracts the failure kind from an attempt error.
func FailureKindOf(err error) (FailureKind, bool) {
	var connectErr *ConnectError
	if errors.As(err, &connectErr) {
		return connectErr.Kind, true
	}
	return "", false
}

// AggregationError reports a cache that could not be persisted.
type AggregationError struct {
	Path string
	Err  error
}

func (e *AggregationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("persist tool cache %s: %v", e.Path, e.Err)
}

func (e *AggregationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *AggregationError) Is(target error) bool {
	return target == ErrAggregation
}

// RunExhaustedError reports that every pass finished with zero tools.
type RunExhaustedError struct {
	Passes int
	Last   error
}

func (e *RunExhaustedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Last == nil {
		return fmt.Sprintf("no provider returned tools after %d pass(es)", e.Passes)
	}
	return fmt.Sprintf("no provider returned tools after %d pass(es): %v", e.Passes, e.Last)
}

func (e *RunExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Last
}

func (e *RunExhaustedError) Is(target error) bool {
	return target == ErrRunExhausted
}
