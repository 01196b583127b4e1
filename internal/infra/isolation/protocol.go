package isolation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/fsutil"
)

const (
	specFileName   = "spec.json"
	resultFileName = "result.json"
)

// WorkerCommand is the hidden subcommand that runs one isolated attempt.
const WorkerCommand = "worker"

// workerResult is the artifact a worker leaves for its parent.
type workerResult struct {
	Provider string              `json:"provider"`
	Tools    []domain.ToolSchema `json:"tools,omitempty"`
	Failure  *workerFailure      `json:"failure,omitempty"`
}

type workerFailure struct {
	Kind    domain.FailureKind `json:"kind"`
	Message string             `json:"message"`
}

func newWorkerResult(provider string, tools []domain.ToolSchema, err error) workerResult {
	result := workerResult{Provider: provider, Tools: tools}
	if err == nil {
		return result
	}
	kind, ok := domain.FailureKindOf(err)
	if !ok {
		kind = domain.FailureProtocol
	}
	message := err.Error()
	var connectErr *domain.ConnectError
	if errors.As(err, &connectErr) && connectErr.Err != nil {
		message = connectErr.Err.Error()
	}
	result.Tools = nil
	result.Failure = &workerFailure{Kind: kind, Message: message}
	return result
}

func (r workerResult) outcome(provider string) ([]domain.ToolSchema, error) {
	if r.Failure != nil {
		kind := r.Failure.Kind
		if kind == "" {
			kind = domain.FailureProtocol
		}
		return nil, domain.NewConnectError(provider, kind, errors.New(r.Failure.Message))
	}
	if r.Tools == nil {
		return []domain.ToolSchema{}, nil
	}
	return r.Tools, nil
}

func writeJSONFile(path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(path, data, 0o600)
}

func readSpecFile(path string) (domain.ProviderSpec, error) {
	var spec domain.ProviderSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read spec file: %w", err)
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("decode spec file: %w", err)
	}
	return spec, nil
}

// readResultFile returns ok=false when the worker has not committed a result yet.
func readResultFile(path string) (workerResult, bool, error) {
	var result workerResult
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, false, nil
		}
		return result, false, fmt.Errorf("read result file: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, true, fmt.Errorf("decode result file: %w", err)
	}
	return result, true, nil
}
