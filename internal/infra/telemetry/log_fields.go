package telemetry

import (
	"time"

	"go.uber.org/zap"

	"mcpscout/internal/domain"
)

const (
	FieldEvent       = "event"
	FieldProvider    = "provider"
	FieldCategory    = "category"
	FieldState       = "state"
	FieldFailureKind = "failure_kind"
	FieldAttempt     = "pass"
	FieldDurationMs  = "duration_ms"
	FieldLogSource   = "log_source"
	FieldLogStream   = "stream"
	FieldRunID       = "run_id"
	FieldTraceID     = "trace_id"
	FieldSpanID      = "span_id"
)

const (
	EventConnectAttempt   = "connect_attempt"
	EventConnectSuccess   = "connect_success"
	EventConnectFailure   = "connect_failure"
	EventToolSkipped      = "tool_skipped"
	EventSessionClosed    = "session_closed"
	EventStateTransition  = "state_transition"
	EventRetryScheduled   = "retry_scheduled"
	EventCachePersisted   = "cache_persisted"
	EventCachePersistFail = "cache_persist_failure"
	EventFallbackEngaged  = "fallback_engaged"
	EventWorkerKilled     = "worker_killed"
	EventConfigReload     = "config_reload"
)

const (
	LogSourceCore       = "core"
	LogSourceDownstream = "downstream"
	LogSourceWorker     = "worker"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ProviderField(name string) zap.Field {
	return zap.String(FieldProvider, name)
}

func CategoryField(category domain.ProviderCategory) zap.Field {
	return zap.String(FieldCategory, string(category))
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func FailureKindField(kind domain.FailureKind) zap.Field {
	return zap.String(FieldFailureKind, string(kind))
}

func AttemptField(pass int) zap.Field {
	return zap.Int(FieldAttempt, pass)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RunIDField(value string) zap.Field {
	return zap.String(FieldRunID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
