package main

import (
	"time"

	"github.com/spf13/pflag"

	"mcpscout/internal/app/discovery"
	"mcpscout/internal/domain"
)

// discoveryFlags are shared by every command that plans or runs discovery.
type discoveryFlags struct {
	safeMode     bool
	fallbackOnly bool
	failFast     bool
	retries      int
	timeout      time.Duration
	strategy     string
	concurrency  int
	cachePath    string
}

func (f *discoveryFlags) bind(flags *pflag.FlagSet) {
	flags.BoolVar(&f.safeMode, "safe-mode", false, "only connect to providers on the safe list")
	flags.BoolVar(&f.fallbackOnly, "fallback-only", false, "skip discovery and publish the built-in tool set")
	flags.BoolVar(&f.failFast, "fail-fast", false, "exit non-zero when every pass fails instead of degrading")
	flags.IntVar(&f.retries, "retry", domain.DefaultMaxRetries, "whole-run retries after an empty pass")
	flags.DurationVar(&f.timeout, "timeout", time.Duration(domain.DefaultConnectTimeoutSeconds)*time.Second, "per-provider connect timeout")
	flags.StringVar(&f.strategy, "strategy", string(domain.DefaultStrategy), "attempt strategy (inprocess, isolated)")
	flags.IntVar(&f.concurrency, "concurrency", domain.DefaultConcurrency, "parallel attempts for the inprocess strategy")
	flags.StringVar(&f.cachePath, "cache", "", "tool cache path (overrides config)")
}

// overrides applies only the flags set on the command line, so config file
// and environment values survive otherwise.
func (f *discoveryFlags) overrides(flags *pflag.FlagSet) func(*domain.DiscoverySettings) {
	return func(settings *domain.DiscoverySettings) {
		flags.Visit(func(flag *pflag.Flag) {
			switch flag.Name {
			case "retry":
				settings.MaxRetries = f.retries
			case "timeout":
				settings.ConnectTimeout = f.timeout
			case "strategy":
				settings.Strategy = domain.ExecutionStrategy(f.strategy)
			case "concurrency":
				settings.Concurrency = f.concurrency
			case "cache":
				settings.CachePath = f.cachePath
			}
		})
	}
}

func (f *discoveryFlags) request(providers []string) discovery.Request {
	return discovery.Request{
		Providers:    providers,
		SafeMode:     f.safeMode,
		FallbackOnly: f.fallbackOnly,
		FailFast:     f.failFast,
	}
}
