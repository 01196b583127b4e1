package transport

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/scheduler"
	"mcpscout/internal/infra/telemetry"
)

type PooledStrategyOptions struct {
	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
	Metrics     domain.Metrics
}

// PooledStrategy runs attempts on a bounded worker pool. A concurrency of
// one runs them sequentially in scheduled order.
type PooledStrategy struct {
	connector   domain.Connector
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
	metrics     domain.Metrics
}

func NewPooledStrategy(connector domain.Connector, opts PooledStrategyOptions) *PooledStrategy {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultConnectTimeoutSeconds) * time.Second
	}
	return &PooledStrategy{
		connector:   connector,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      logger.Named("attempts"),
		metrics:     metrics,
	}
}

func (s *PooledStrategy) ConnectAll(ctx context.Context, specs []domain.ProviderSpec, pass int) []domain.ProviderResult {
	results := make([]domain.ProviderResult, len(specs))
	if s.concurrency == 1 || len(specs) <= 1 {
		for i, spec := range specs {
			results[i] = s.attempt(ctx, spec, pass)
		}
		return results
	}

	size := s.concurrency
	if size > len(specs) {
		size = len(specs)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		s.logger.Warn("worker pool unavailable; connecting sequentially", zap.Error(err))
		for i, spec := range specs {
			results[i] = s.attempt(ctx, spec, pass)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, spec := range specs {
		i, spec := i, spec
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = s.attempt(ctx, spec, pass)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = s.attempt(ctx, spec, pass)
		}
	}
	wg.Wait()
	return results
}

func (s *PooledStrategy) attempt(ctx context.Context, spec domain.ProviderSpec, pass int) domain.ProviderResult {
	category := scheduler.Categorize(spec.Name)
	logger := s.logger.With(
		telemetry.ProviderField(spec.Name),
		telemetry.CategoryField(category),
		telemetry.AttemptField(pass),
	)
	logger = logger.With(telemetry.RunFields(ctx)...)

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanConnect,
		telemetry.AttrProvider.String(spec.Name),
		telemetry.AttrCategory.String(string(category)),
		telemetry.AttrPass.Int(pass),
	)
	logger.Info("connecting to provider", telemetry.EventField(telemetry.EventConnectAttempt))

	started := time.Now()
	tools, err := s.connector.Connect(ctx, spec, s.timeout)
	duration := time.Since(started)

	outcome := domain.AttemptOutcome{
		Provider: spec.Name,
		Category: category,
		Pass:     pass,
		Duration: duration,
	}
	if err != nil {
		kind, ok := domain.FailureKindOf(err)
		if !ok {
			kind = domain.FailureProtocol
			err = domain.NewConnectError(spec.Name, kind, err)
		}
		outcome.State = domain.AttemptFailed
		if kind == domain.FailureTimeout {
			outcome.State = domain.AttemptTimedOut
		}
		outcome.FailureKind = kind
		outcome.Error = err.Error()
		logger.Warn("provider connection failed",
			telemetry.EventField(telemetry.EventConnectFailure),
			telemetry.FailureKindField(kind),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		s.metrics.ObserveAttempt(spec.Name, category, duration, kind)
		telemetry.EndSpan(span, err, telemetry.AttrFailureKind.String(string(kind)))
		return domain.ProviderResult{Provider: spec.Name, Err: err, Outcome: outcome}
	}

	outcome.State = domain.AttemptConnected
	outcome.ToolCount = len(tools)
	logger.Info("provider tools listed",
		telemetry.EventField(telemetry.EventConnectSuccess),
		telemetry.DurationField(duration),
		zap.Int("tools", len(tools)),
	)
	s.metrics.ObserveAttempt(spec.Name, category, duration, "")
	telemetry.EndSpan(span, nil, telemetry.AttrToolCount.Int(len(tools)))
	return domain.ProviderResult{Provider: spec.Name, Tools: tools, Outcome: outcome}
}

var _ domain.ConnectStrategy = (*PooledStrategy)(nil)
