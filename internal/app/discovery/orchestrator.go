package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mcpscout/internal/app/capability"
	"mcpscout/internal/domain"
	"mcpscout/internal/infra/hashutil"
	"mcpscout/internal/infra/telemetry"
	"mcpscout/internal/infra/toolcache"
	"mcpscout/internal/infra/transport"
)

// Request selects what one run attempts.
type Request struct {
	// Providers restricts the run to these names. Empty means all configured.
	Providers    []string
	SafeMode     bool
	FallbackOnly bool
	FailFast     bool
}

// Result is the outcome of a finished run.
type Result struct {
	State        domain.RunState
	Reason       domain.DegradedReason
	Selection    Selection
	Cache        *domain.ToolCache
	Capabilities capability.Set
	Report       domain.RunReport
	// PersistErr is set when the cache could not be written. The run still
	// completes.
	PersistErr error
}

type Options struct {
	Providers domain.ProviderSet
	Settings  domain.DiscoverySettings
	Strategy  domain.ConnectStrategy
	Store     domain.CacheStore
	History   domain.RunHistory
	Metrics   domain.Metrics
	Health    *telemetry.HealthTracker
	Logger    *zap.Logger
	Sleep     SleepFunc
	Now       func() time.Time
}

// Orchestrator drives Init → Scheduling → Connecting → Aggregated →
// Success | Degraded for one provider catalog.
type Orchestrator struct {
	providers domain.ProviderSet
	settings  domain.DiscoverySettings
	strategy  domain.ConnectStrategy
	store     domain.CacheStore
	history   domain.RunHistory
	metrics   domain.Metrics
	health    *telemetry.HealthTracker
	logger    *zap.Logger
	sleep     SleepFunc
	now       func() time.Time
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		providers: opts.Providers,
		settings:  opts.Settings,
		strategy:  opts.Strategy,
		store:     opts.Store,
		history:   opts.History,
		metrics:   metrics,
		health:    opts.Health,
		logger:    logger.Named("discovery"),
		sleep:     sleep,
		now:       now,
	}
}

// run carries the mutable state of one Run call.
type run struct {
	ctx    context.Context
	logger *zap.Logger
	state  domain.RunState
	report domain.RunReport
	span   trace.Span
}

func (r *run) transition(next domain.RunState, fields ...zap.Field) {
	fields = append([]zap.Field{
		telemetry.EventField(telemetry.EventStateTransition),
		zap.String("from", string(r.state)),
		telemetry.StateField(string(next)),
	}, fields...)
	r.logger.Info("run state changed", fields...)
	r.state = next
}

// Run performs one discovery run. Unless fail-fast is set, every outcome
// short of cancellation ends in Success or Degraded with a usable tool set.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	ctx, meta := telemetry.EnsureRunMeta(ctx, "")
	registry := transport.NewSessionRegistry(o.logger)
	ctx = transport.WithRegistry(ctx, registry)
	defer registry.Drain()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRun)
	r := &run{
		ctx:    ctx,
		logger: o.logger.With(telemetry.RunIDField(meta.RunID)),
		state:  domain.RunInit,
		span:   span,
		report: domain.RunReport{
			ID:        meta.RunID,
			StartedAt: o.now(),
			Requested: append([]string(nil), req.Providers...),
			Strategy:  string(o.settings.Strategy),
			SafeMode:  req.SafeMode,
		},
	}

	if req.FallbackOnly {
		r.logger.Info("fallback-only requested; skipping discovery", telemetry.EventField(telemetry.EventFallbackEngaged))
		return o.degrade(r, domain.DegradedFallbackOnly, Selection{}, false)
	}

	r.transition(domain.RunScheduling)
	if o.providers.IsEmpty() {
		r.logger.Warn("no providers configured")
		return o.degrade(r, domain.DegradedEmptyConfig, Selection{}, true)
	}
	sel := Select(o.providers, o.settings, req, r.logger)
	r.report.Unknown = sel.Unknown
	r.report.Scheduled = sel.Names()
	if len(sel.Plan) == 0 {
		r.logger.Warn("no configured provider matched the request", zap.Strings("requested", req.Providers))
		return o.degrade(r, domain.DegradedNothingScheduled, sel, true)
	}

	specs := make([]domain.ProviderSpec, 0, len(sel.Plan))
	for _, name := range sel.Names() {
		spec, _ := o.providers.Get(name)
		specs = append(specs, spec)
	}

	r.transition(domain.RunConnecting, zap.Strings("scheduled", r.report.Scheduled))
	outcome, err := o.connect(r, specs)
	if err != nil {
		return o.interrupted(r, sel, err)
	}
	cache := outcome.cache

	r.transition(domain.RunAggregated,
		zap.Int("providers", cache.Len()),
		zap.Int("tools", cache.ToolCount()),
	)
	if !cache.IsEmpty() {
		return o.succeed(r, sel, cache)
	}
	if req.FailFast {
		return o.fail(r, sel, outcome.lastErr)
	}
	return o.degrade(r, domain.DegradedNoProviders, sel, true)
}

// connectOutcome is the aggregated cache of the final pass and the last
// attempt error seen across all passes.
type connectOutcome struct {
	cache   *domain.ToolCache
	lastErr error
}

// connect runs passes until one yields tools or retries are exhausted. It
// only fails when the run is cancelled.
func (o *Orchestrator) connect(r *run, specs []domain.ProviderSpec) (connectOutcome, error) {
	var lastErr error
	for pass := 0; ; pass++ {
		passCtx, passSpan := telemetry.StartSpan(r.ctx, telemetry.SpanPass, telemetry.AttrPass.Int(pass))
		results := o.strategy.ConnectAll(passCtx, specs, pass)
		r.report.Passes = pass + 1
		for _, result := range results {
			r.report.Attempts = append(r.report.Attempts, result.Outcome)
			if result.Err != nil {
				lastErr = result.Err
			}
		}
		cache := toolcache.Aggregate(results)
		telemetry.EndSpan(passSpan, nil, telemetry.AttrToolCount.Int(cache.ToolCount()))

		if err := r.ctx.Err(); err != nil {
			return connectOutcome{}, err
		}
		if !cache.IsEmpty() || pass >= o.settings.MaxRetries {
			return connectOutcome{cache: cache, lastErr: lastErr}, nil
		}

		delay := retryDelay(o.settings.BackoffUnit, o.settings.BackoffBase, pass+1)
		r.logger.Warn("no provider returned tools; retrying",
			telemetry.EventField(telemetry.EventRetryScheduled),
			telemetry.AttemptField(pass+1),
			telemetry.DurationField(delay),
		)
		o.metrics.ObserveRetry(pass + 1)
		if err := o.sleep(r.ctx, delay); err != nil {
			return connectOutcome{}, err
		}
	}
}

func (o *Orchestrator) succeed(r *run, sel Selection, cache *domain.ToolCache) (Result, error) {
	result := Result{
		State:        domain.RunSuccess,
		Selection:    sel,
		Cache:        cache,
		Capabilities: capability.FromCache(cache),
	}
	result.PersistErr = o.persist(r, cache)
	for _, collision := range result.Capabilities.Collisions {
		r.logger.Warn("tool name provided by more than one provider; later provider wins",
			zap.String("tool", collision.Tool),
			zap.String("winner", collision.Winner),
			zap.Strings("shadowed", collision.Shadowed),
		)
	}
	r.transition(domain.RunSuccess)
	return o.finish(r, result), nil
}

func (o *Orchestrator) degrade(r *run, reason domain.DegradedReason, sel Selection, persist bool) (Result, error) {
	result := Result{
		State:        domain.RunDegraded,
		Reason:       reason,
		Selection:    sel,
		Cache:        domain.NewToolCache(),
		Capabilities: capability.Fallback(),
	}
	if persist {
		result.PersistErr = o.persist(r, result.Cache)
	}
	r.logger.Warn("using built-in tools",
		telemetry.EventField(telemetry.EventFallbackEngaged),
		zap.String("reason", string(reason)),
	)
	r.transition(domain.RunDegraded, zap.String("reason", string(reason)))
	return o.finish(r, result), nil
}

func (o *Orchestrator) fail(r *run, sel Selection, lastErr error) (Result, error) {
	err := &domain.RunExhaustedError{Passes: r.report.Passes, Last: lastErr}
	result := Result{
		State:     domain.RunFailed,
		Selection: sel,
		Cache:     domain.NewToolCache(),
	}
	r.logger.Error("discovery exhausted with fail-fast set", zap.Error(err))
	r.transition(domain.RunFailed)
	return o.finish(r, result), err
}

func (o *Orchestrator) interrupted(r *run, sel Selection, cause error) (Result, error) {
	err := fmt.Errorf("discovery interrupted: %w", cause)
	r.logger.Warn("discovery interrupted", zap.Error(cause))
	r.report.FinishedAt = o.now()
	telemetry.EndSpan(r.span, err)
	return Result{State: r.state, Selection: sel, Report: r.report}, err
}

func (o *Orchestrator) persist(r *run, cache *domain.ToolCache) error {
	if o.store == nil {
		return nil
	}
	if err := o.store.Persist(cache); err != nil {
		var aggErr *domain.AggregationError
		if !errors.As(err, &aggErr) {
			err = &domain.AggregationError{Path: o.store.Path(), Err: err}
		}
		r.logger.Warn("continuing without a persisted cache",
			telemetry.EventField(telemetry.EventCachePersistFail),
			zap.Error(err),
		)
		r.report.PersistError = err.Error()
		return err
	}
	return nil
}

func (o *Orchestrator) finish(r *run, result Result) Result {
	report := r.report
	report.FinishedAt = o.now()
	report.State = result.State
	report.DegradedReason = result.Reason
	report.Providers = result.Cache.Len()
	report.ToolCount = len(result.Capabilities.Tools)
	report.Fingerprint = hashutil.CacheFingerprint(r.logger, result.Cache)
	result.Report = report

	o.metrics.ObserveRun(report.State, report.DegradedReason, report.Duration())
	o.metrics.SetDiscoveredProviders(report.Providers)
	o.metrics.SetDiscoveredTools(result.Cache.ToolCount())
	if o.health != nil {
		o.health.Observe(report)
	}
	if o.history != nil {
		if err := o.history.Record(context.WithoutCancel(r.ctx), report); err != nil {
			r.logger.Warn("run history not recorded", zap.Error(err))
		}
	}

	var spanErr error
	if report.State == domain.RunFailed {
		spanErr = domain.ErrRunExhausted
	}
	telemetry.EndSpan(r.span, spanErr,
		telemetry.AttrRunState.String(string(report.State)),
		telemetry.AttrToolCount.Int(report.ToolCount),
	)
	r.logger.Info("discovery finished",
		telemetry.StateField(string(report.State)),
		zap.String("reason", string(report.DegradedReason)),
		zap.Int("providers", report.Providers),
		zap.Int("tools", report.ToolCount),
		telemetry.DurationField(report.Duration()),
	)
	return result
}
