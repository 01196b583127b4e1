package telemetry

import (
	"sync"
	"time"

	"mcpscout/internal/domain"
)

const (
	HealthStatusOK       = "ok"
	HealthStatusPending  = "pending"
	HealthStatusDegraded = "degraded"
)

type HealthReport struct {
	Status         string                `json:"status"`
	RunID          string                `json:"runId,omitempty"`
	State          domain.RunState       `json:"state,omitempty"`
	DegradedReason domain.DegradedReason `json:"degradedReason,omitempty"`
	ToolCount      int                   `json:"toolCount"`
	FinishedAt     *time.Time            `json:"finishedAt,omitempty"`
}

// HealthTracker remembers the outcome of the latest discovery run.
type HealthTracker struct {
	mu     sync.RWMutex
	report HealthReport
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{report: HealthReport{Status: HealthStatusPending}}
}

func (h *HealthTracker) Observe(report domain.RunReport) {
	status := HealthStatusOK
	if report.State != domain.RunSuccess {
		status = HealthStatusDegraded
	}
	finished := report.FinishedAt
	h.mu.Lock()
	h.report = HealthReport{
		Status:         status,
		RunID:          report.ID,
		State:          report.State,
		DegradedReason: report.DegradedReason,
		ToolCount:      report.ToolCount,
		FinishedAt:     &finished,
	}
	h.mu.Unlock()
}

func (h *HealthTracker) Report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report
}
