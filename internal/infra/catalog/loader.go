package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/telemetry"
)

const providersKey = "mcpServers"

type IssueKind string

const (
	IssueInvalid   IssueKind = "invalid"
	IssueDuplicate IssueKind = "duplicate"
	IssueEnv       IssueKind = "missing_env"
)

// Issue is a problem with one entry that did not prevent loading the rest.
type Issue struct {
	Name    string
	Kind    IssueKind
	Message string
}

// Result is the outcome of loading a provider configuration file.
type Result struct {
	Path       string
	Providers  domain.ProviderSet
	Issues     []Issue
	MissingEnv []string
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("catalog")}
}

// ResolveConfigPath picks the explicit path, then MCPSCOUT_CONFIG, then the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(domain.EnvConfigPath)); env != "" {
		return env
	}
	return domain.DefaultConfigPath
}

// Load reads the provider map. It never fails hard: when the file cannot be
// used the result holds an empty provider set and the error is a *domain.ConfigError.
func (l *Loader) Load(ctx context.Context, path string) (Result, error) {
	path = ResolveConfigPath(path)
	result := Result{Path: path}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return result, &domain.ConfigError{Path: path, Err: err}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return result, &domain.ConfigError{Path: path, Err: err}
	}

	var specs []domain.ProviderSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		specs, result.Issues, result.MissingEnv, err = parseTOMLProviders(data)
	default:
		specs, result.Issues, result.MissingEnv, err = parseNodeProviders(data)
	}
	if err != nil {
		return result, &domain.ConfigError{Path: path, Err: err}
	}

	set, err := domain.NewProviderSet(specs)
	if err != nil {
		return result, &domain.ConfigError{Path: path, Err: err}
	}
	result.Providers = set

	for _, issue := range result.Issues {
		l.logger.Warn("provider entry skipped",
			telemetry.ProviderField(issue.Name),
			zap.String("kind", string(issue.Kind)),
			zap.String("reason", issue.Message),
		)
	}
	if len(result.MissingEnv) > 0 {
		l.logger.Warn("config references unset environment variables",
			zap.String("path", path),
			zap.Strings("variables", result.MissingEnv),
		)
	}
	l.logger.Debug("provider config loaded",
		zap.String("path", path),
		zap.Int("providers", set.Len()),
	)
	return result, nil
}

// parseNodeProviders handles JSON and YAML. Walking the node tree keeps the
// declaration order of the provider map.
func parseNodeProviders(data []byte) ([]domain.ProviderSpec, []Issue, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, nil, fmt.Errorf("parse config: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil, nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, nil, nil, errors.New("top-level value must be an object")
	}

	var servers *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == providersKey {
			servers = doc.Content[i+1]
			break
		}
	}
	if servers == nil || servers.Tag == "!!null" {
		return nil, nil, nil, nil
	}
	if servers.Kind != yaml.MappingNode {
		return nil, nil, nil, fmt.Errorf("%s must be an object", providersKey)
	}

	missing := expandNodeEnv(servers)

	var (
		specs  []domain.ProviderSpec
		issues []Issue
		seen   = make(map[string]int)
	)
	for i := 0; i+1 < len(servers.Content); i += 2 {
		name := strings.TrimSpace(servers.Content[i].Value)
		var entry map[string]any
		if err := servers.Content[i+1].Decode(&entry); err != nil || entry == nil {
			issues = append(issues, Issue{Name: name, Kind: IssueInvalid, Message: "entry must be an object"})
			continue
		}
		spec, issue, ok := parseProviderSpec(name, entry)
		if !ok {
			issues = append(issues, *issue)
			continue
		}
		if idx, exists := seen[name]; exists {
			issues = append(issues, Issue{Name: name, Kind: IssueDuplicate, Message: "later entry replaces earlier definition"})
			specs[idx] = spec
			continue
		}
		seen[name] = len(specs)
		specs = append(specs, spec)
	}
	return specs, issues, missing, nil
}

func parseTOMLProviders(data []byte) ([]domain.ProviderSpec, []Issue, []string, error) {
	var payload map[string]any
	if err := toml.Unmarshal(data, &payload); err != nil {
		return nil, nil, nil, fmt.Errorf("parse toml: %w", err)
	}
	primary := readTomlTable(payload, "mcp_servers")
	legacy := readTomlTable(payload, "mcp", "servers")

	var (
		specs   []domain.ProviderSpec
		issues  []Issue
		seen    = make(map[string]struct{})
		missing = make(map[string]struct{})
	)
	collect := func(table map[string]any, legacyTable bool) {
		for _, name := range sortedTableKeys(table) {
			if _, exists := seen[name]; exists && legacyTable {
				issues = append(issues, Issue{
					Name:    name,
					Kind:    IssueDuplicate,
					Message: "legacy mcp.servers entry ignored because mcp_servers already defines it",
				})
				continue
			}
			entry, ok := table[name].(map[string]any)
			if !ok {
				issues = append(issues, Issue{Name: name, Kind: IssueInvalid, Message: "entry must be an object"})
				continue
			}
			spec, issue, ok := parseProviderSpec(name, entry)
			if !ok {
				issues = append(issues, *issue)
				continue
			}
			expandSpecEnv(&spec, missing)
			seen[spec.Name] = struct{}{}
			specs = append(specs, spec)
		}
	}
	collect(primary, false)
	collect(legacy, true)
	return specs, issues, missingList(missing), nil
}

func readTomlTable(payload map[string]any, path ...string) map[string]any {
	current := payload
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return nil
		}
		table, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return table
		}
		current = table
	}
	return nil
}

func sortedTableKeys(table map[string]any) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func expandSpecEnv(spec *domain.ProviderSpec, missing map[string]struct{}) {
	spec.Command = expandEnvWithTracking(spec.Command, missing)
	for i, arg := range spec.Args {
		spec.Args[i] = expandEnvWithTracking(arg, missing)
	}
	for key, value := range spec.Env {
		spec.Env[key] = expandEnvWithTracking(value, missing)
	}
}

func parseProviderSpec(name string, entry map[string]any) (domain.ProviderSpec, *Issue, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ProviderSpec{}, &Issue{Kind: IssueInvalid, Message: "provider name is required"}, false
	}
	command, ok := readRequiredString(entry, "command")
	if !ok {
		return domain.ProviderSpec{}, &Issue{Name: name, Kind: IssueInvalid, Message: "command is required"}, false
	}
	if raw, exists := entry["args"]; !exists || raw == nil {
		return domain.ProviderSpec{}, &Issue{Name: name, Kind: IssueInvalid, Message: "args is required"}, false
	}
	args, ok := readOptionalStringSlice(entry, "args")
	if !ok {
		return domain.ProviderSpec{}, &Issue{Name: name, Kind: IssueInvalid, Message: "args must be an array of strings"}, false
	}
	env, ok := readOptionalStringMap(entry, "env")
	if !ok {
		return domain.ProviderSpec{}, &Issue{Name: name, Kind: IssueInvalid, Message: "env must be a map of strings"}, false
	}
	return domain.ProviderSpec{
		Name:    name,
		Command: command,
		Args:    args,
		Env:     env,
	}, nil, true
}

func readRequiredString(entry map[string]any, key string) (string, bool) {
	value, ok := entry[key].(string)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func readOptionalStringSlice(entry map[string]any, key string) ([]string, bool) {
	raw, exists := entry[key]
	if !exists || raw == nil {
		return nil, true
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		value, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, value)
	}
	return out, true
}

func readOptionalStringMap(entry map[string]any, key string) (map[string]string, bool) {
	raw, exists := entry[key]
	if !exists || raw == nil {
		return nil, true
	}
	items, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(items))
	for k, item := range items {
		value, ok := item.(string)
		if !ok {
			return nil, false
		}
		out[k] = value
	}
	return out, true
}
