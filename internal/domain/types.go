package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderSpec describes how to launch one tool provider over stdio.
type ProviderSpec struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Argv returns the command followed by its arguments.
func (s ProviderSpec) Argv() []string {
	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Command)
	return append(argv, s.Args...)
}

// ProviderSet is the ordered collection of configured providers.
type ProviderSet struct {
	specs []ProviderSpec
	index map[string]int
}

func NewProviderSet(specs []ProviderSpec) (ProviderSet, error) {
	set := ProviderSet{
		specs: make([]ProviderSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return ProviderSet{}, fmt.Errorf("%w: provider name is required", ErrInvalidProvider)
		}
		if _, exists := set.index[name]; exists {
			return ProviderSet{}, fmt.Errorf("%w: %s", ErrDuplicateProvider, name)
		}
		spec.Name = name
		set.index[name] = len(set.specs)
		set.specs = append(set.specs, spec)
	}
	return set, nil
}

func (s ProviderSet) Len() int {
	return len(s.specs)
}

func (s ProviderSet) IsEmpty() bool {
	return len(s.specs) == 0
}

func (s ProviderSet) Names() []string {
	names := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		names = append(names, spec.Name)
	}
	return names
}

func (s ProviderSet) Get(name string) (ProviderSpec, bool) {
	idx, ok := s.index[name]
	if !ok {
		return ProviderSpec{}, false
	}
	return s.specs[idx], true
}

// ProviderCategory is a coarse grouping derived from a provider name.
type ProviderCategory string

const (
	CategoryFilesystem  ProviderCategory = "filesystem"
	CategoryMemory      ProviderCategory = "memory"
	CategorySearch      ProviderCategory = "search"
	CategoryCodeHosting ProviderCategory = "code-hosting"
	CategoryBrowser     ProviderCategory = "browser"
	CategoryEmail       ProviderCategory = "email"
	CategoryCalendar    ProviderCategory = "calendar"
	CategoryTravel      ProviderCategory = "travel"
	CategoryVoice       ProviderCategory = "voice"
	CategoryOther       ProviderCategory = "other"
)

// ToolSchema is one callable capability advertised by a provider.
// Parameters is passed through untouched.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// AttemptState tracks one connection attempt.
type AttemptState string

const (
	AttemptPending   AttemptState = "pending"
	AttemptConnected AttemptState = "connected"
	AttemptTimedOut  AttemptState = "timed-out"
	AttemptFailed    AttemptState = "failed"
	AttemptClosed    AttemptState = "closed"
)

// AttemptOutcome records how a provider attempt ended.
type AttemptOutcome struct {
	Provider    string           `json:"provider"`
	Category    ProviderCategory `json:"category"`
	Pass        int              `json:"pass"`
	State       AttemptState     `json:"state"`
	FailureKind FailureKind      `json:"failureKind,omitempty"`
	Error       string           `json:"error,omitempty"`
	ToolCount   int              `json:"toolCount"`
	Duration    time.Duration    `json:"duration"`
}

// Succeeded reports whether the attempt produced at least one tool.
func (o AttemptOutcome) Succeeded() bool {
	return o.State == AttemptConnected && o.ToolCount > 0
}

// ProviderResult is the output of one attempt, indexed by scheduled position.
type ProviderResult struct {
	Provider string
	Tools    []ToolSchema
	Err      error
	Outcome  AttemptOutcome
}

// ExecutionStrategy selects how attempts are executed.
type ExecutionStrategy string

const (
	StrategyInProcess ExecutionStrategy = "inprocess"
	StrategyIsolated  ExecutionStrategy = "isolated"
)

// PriorityTable drives scheduling order.
type PriorityTable struct {
	High            []string                 `json:"high"`
	Medium          []string                 `json:"medium"`
	Categories      map[ProviderCategory]int `json:"categories"`
	UnknownPriority int                      `json:"unknownPriority"`
}

// CategoryPriority returns the priority for a category, falling back to UnknownPriority.
func (t PriorityTable) CategoryPriority(category ProviderCategory) int {
	if priority, ok := t.Categories[category]; ok {
		return priority
	}
	if t.UnknownPriority > 0 {
		return t.UnknownPriority
	}
	return DefaultUnknownCategoryPriority
}

// DiscoverySettings configures a discovery run.
type DiscoverySettings struct {
	ConnectTimeout time.Duration
	MaxRetries     int
	BackoffBase    float64
	BackoffUnit    time.Duration
	Strategy       ExecutionStrategy
	Concurrency    int
	IsolationGrace time.Duration
	IsolationPoll  time.Duration
	CachePath      string
	HistoryPath    string
	SafeProviders  []string
	Priority       PriorityTable
}

// DefaultDiscoverySettings returns settings populated with defaults.
func DefaultDiscoverySettings() DiscoverySettings {
	return DiscoverySettings{
		ConnectTimeout: time.Duration(DefaultConnectTimeoutSeconds) * time.Second,
		MaxRetries:     DefaultMaxRetries,
		BackoffBase:    DefaultBackoffBase,
		BackoffUnit:    time.Duration(DefaultBackoffUnitMillis) * time.Millisecond,
		Strategy:       DefaultStrategy,
		Concurrency:    DefaultConcurrency,
		IsolationGrace: time.Duration(DefaultIsolationGraceSeconds) * time.Second,
		IsolationPoll:  time.Duration(DefaultIsolationPollMillis) * time.Millisecond,
		CachePath:      DefaultCachePath,
		SafeProviders:  DefaultSafeProviders(),
		Priority:       DefaultPriorityTable(),
	}
}

// RunState is the orchestrator state.
type RunState string

const (
	RunInit       RunState = "init"
	RunScheduling RunState = "scheduling"
	RunConnecting RunState = "connecting"
	RunAggregated RunState = "aggregated"
	RunSuccess    RunState = "success"
	RunDegraded   RunState = "degraded"
	// RunFailed ends a fail-fast run whose retries were exhausted.
	RunFailed RunState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == RunSuccess || s == RunDegraded || s == RunFailed
}

// DegradedReason explains why a run ended degraded.
type DegradedReason string

const (
	DegradedEmptyConfig      DegradedReason = "empty-config"
	DegradedNothingScheduled DegradedReason = "nothing-scheduled"
	DegradedNoProviders      DegradedReason = "no-providers-responded"
	DegradedFallbackOnly     DegradedReason = "fallback-only"
)

// RunReport summarizes one discovery run.
type RunReport struct {
	ID             string           `json:"id"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     time.Time        `json:"finishedAt"`
	Requested      []string         `json:"requested,omitempty"`
	Unknown        []string         `json:"unknown,omitempty"`
	Scheduled      []string         `json:"scheduled"`
	Strategy       string           `json:"strategy"`
	SafeMode       bool             `json:"safeMode,omitempty"`
	Passes         int              `json:"passes"`
	Attempts       []AttemptOutcome `json:"attempts"`
	State          RunState         `json:"state"`
	DegradedReason DegradedReason   `json:"degradedReason,omitempty"`
	Providers      int              `json:"providers"`
	ToolCount      int              `json:"toolCount"`
	Fingerprint    string           `json:"fingerprint,omitempty"`
	PersistError   string           `json:"persistError,omitempty"`
}

// Duration returns the wall-clock run duration.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
