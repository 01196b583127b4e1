package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mcpscout/internal/domain"
)

func newDiscoveryViper() *viper.Viper {
	v := viper.New()
	setDiscoveryDefaults(v)
	bindDiscoveryEnv(v)
	return v
}

func setDiscoveryDefaults(v *viper.Viper) {
	defaults := domain.DefaultPriorityTable()
	categories := make(map[string]any, len(defaults.Categories))
	for category, priority := range defaults.Categories {
		categories[string(category)] = priority
	}
	v.SetDefault("discovery.timeoutSeconds", domain.DefaultConnectTimeoutSeconds)
	v.SetDefault("discovery.retries", domain.DefaultMaxRetries)
	v.SetDefault("discovery.backoffBase", domain.DefaultBackoffBase)
	v.SetDefault("discovery.backoffUnitMs", domain.DefaultBackoffUnitMillis)
	v.SetDefault("discovery.strategy", string(domain.DefaultStrategy))
	v.SetDefault("discovery.concurrency", domain.DefaultConcurrency)
	v.SetDefault("discovery.isolationGraceSeconds", domain.DefaultIsolationGraceSeconds)
	v.SetDefault("discovery.isolationPollMs", domain.DefaultIsolationPollMillis)
	v.SetDefault("discovery.cachePath", domain.DefaultCachePath)
	v.SetDefault("discovery.historyPath", "")
	v.SetDefault("discovery.safeProviders", domain.DefaultSafeProviders())
	v.SetDefault("discovery.priority.high", defaults.High)
	v.SetDefault("discovery.priority.medium", defaults.Medium)
	v.SetDefault("discovery.priority.categories", categories)
	v.SetDefault("discovery.priority.unknownPriority", defaults.UnknownPriority)
}

func bindDiscoveryEnv(v *viper.Viper) {
	bindings := map[string]string{
		"discovery.timeoutSeconds":        "TIMEOUT_SECONDS",
		"discovery.retries":               "RETRIES",
		"discovery.backoffBase":           "BACKOFF_BASE",
		"discovery.backoffUnitMs":         "BACKOFF_UNIT_MS",
		"discovery.strategy":              "STRATEGY",
		"discovery.concurrency":           "CONCURRENCY",
		"discovery.isolationGraceSeconds": "ISOLATION_GRACE_SECONDS",
		"discovery.cachePath":             "CACHE",
		"discovery.historyPath":           "HISTORY",
		"discovery.safeProviders":         "SAFE_PROVIDERS",
	}
	for key, suffix := range bindings {
		_ = v.BindEnv(key, domain.EnvPrefix+"_"+suffix)
	}
}

type rawSettingsFile struct {
	Discovery rawDiscoverySettings `mapstructure:"discovery"`
}

type rawDiscoverySettings struct {
	TimeoutSeconds        float64          `mapstructure:"timeoutSeconds"`
	Retries               int              `mapstructure:"retries"`
	BackoffBase           float64          `mapstructure:"backoffBase"`
	BackoffUnitMs         int              `mapstructure:"backoffUnitMs"`
	Strategy              string           `mapstructure:"strategy"`
	Concurrency           int              `mapstructure:"concurrency"`
	IsolationGraceSeconds float64          `mapstructure:"isolationGraceSeconds"`
	IsolationPollMs       int              `mapstructure:"isolationPollMs"`
	CachePath             string           `mapstructure:"cachePath"`
	HistoryPath           string           `mapstructure:"historyPath"`
	SafeProviders         []string         `mapstructure:"safeProviders"`
	Priority              rawPriorityTable `mapstructure:"priority"`
}

type rawPriorityTable struct {
	High            []string       `mapstructure:"high"`
	Medium          []string       `mapstructure:"medium"`
	Categories      map[string]int `mapstructure:"categories"`
	UnknownPriority int            `mapstructure:"unknownPriority"`
}

type SettingsLoader struct {
	logger *zap.Logger
}

func NewSettingsLoader(logger *zap.Logger) *SettingsLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsLoader{logger: logger.Named("settings")}
}

// Load reads the optional discovery section of the config file, layered over
// defaults and MCPSCOUT_* environment variables. A missing file is not an error.
func (l *SettingsLoader) Load(ctx context.Context, path string) (domain.DiscoverySettings, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return domain.DiscoverySettings{}, err
		}
	}
	path = ResolveConfigPath(path)

	v := newDiscoveryViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType(configType(path))
		if err := v.ReadInConfig(); err != nil {
			return domain.DiscoverySettings{}, &domain.ConfigError{Path: path, Err: fmt.Errorf("read settings: %w", err)}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.DiscoverySettings{}, &domain.ConfigError{Path: path, Err: err}
	}

	var raw rawSettingsFile
	if err := v.Unmarshal(&raw); err != nil {
		return domain.DiscoverySettings{}, fmt.Errorf("decode settings: %w", err)
	}

	settings := normalizeSettings(raw.Discovery)
	if errs := validateSettings(settings); len(errs) > 0 {
		return domain.DiscoverySettings{}, fmt.Errorf("%w: %s", domain.ErrInvalidSettings, strings.Join(errs, "; "))
	}
	l.logger.Debug("discovery settings loaded",
		zap.String("path", path),
		zap.Duration("timeout", settings.ConnectTimeout),
		zap.Int("retries", settings.MaxRetries),
		zap.String("strategy", string(settings.Strategy)),
	)
	return settings, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func normalizeSettings(raw rawDiscoverySettings) domain.DiscoverySettings {
	categories := make(map[domain.ProviderCategory]int, len(raw.Priority.Categories))
	for category, priority := range raw.Priority.Categories {
		categories[domain.ProviderCategory(strings.ToLower(strings.TrimSpace(category)))] = priority
	}
	historyPath := strings.TrimSpace(raw.HistoryPath)
	if historyPath == "" {
		historyPath = DefaultHistoryPath()
	}
	return domain.DiscoverySettings{
		ConnectTimeout: secondsToDuration(raw.TimeoutSeconds),
		MaxRetries:     raw.Retries,
		BackoffBase:    raw.BackoffBase,
		BackoffUnit:    time.Duration(raw.BackoffUnitMs) * time.Millisecond,
		Strategy:       domain.ExecutionStrategy(strings.ToLower(strings.TrimSpace(raw.Strategy))),
		Concurrency:    raw.Concurrency,
		IsolationGrace: secondsToDuration(raw.IsolationGraceSeconds),
		IsolationPoll:  time.Duration(raw.IsolationPollMs) * time.Millisecond,
		CachePath:      strings.TrimSpace(raw.CachePath),
		HistoryPath:    historyPath,
		SafeProviders:  trimNames(raw.SafeProviders),
		Priority: domain.PriorityTable{
			High:            trimNames(raw.Priority.High),
			Medium:          trimNames(raw.Priority.Medium),
			Categories:      categories,
			UnknownPriority: raw.Priority.UnknownPriority,
		},
	}
}

// ValidateSettings reports every invalid field.
func ValidateSettings(settings domain.DiscoverySettings) error {
	if errs := validateSettings(settings); len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSettings, strings.Join(errs, "; "))
	}
	return nil
}

func validateSettings(settings domain.DiscoverySettings) []string {
	var errs []string
	if settings.ConnectTimeout <= 0 {
		errs = append(errs, "timeoutSeconds must be > 0")
	}
	if settings.MaxRetries < 0 {
		errs = append(errs, "retries must be >= 0")
	}
	if settings.BackoffBase < 1 {
		errs = append(errs, "backoffBase must be >= 1")
	}
	if settings.BackoffUnit < 0 {
		errs = append(errs, "backoffUnitMs must be >= 0")
	}
	switch settings.Strategy {
	case domain.StrategyInProcess, domain.StrategyIsolated:
	default:
		errs = append(errs, fmt.Sprintf("strategy must be %q or %q", domain.StrategyInProcess, domain.StrategyIsolated))
	}
	if settings.Concurrency < 1 {
		errs = append(errs, "concurrency must be >= 1")
	}
	if settings.IsolationGrace < 0 {
		errs = append(errs, "isolationGraceSeconds must be >= 0")
	}
	if settings.IsolationPoll <= 0 {
		errs = append(errs, "isolationPollMs must be > 0")
	}
	if settings.CachePath == "" {
		errs = append(errs, "cachePath is required")
	}
	return errs
}

// DefaultHistoryPath places the run history under the user cache directory.
func DefaultHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, domain.ClientName, "history.db")
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func trimNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
