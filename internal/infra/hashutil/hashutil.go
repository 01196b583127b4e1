package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"mcpscout/internal/domain"
)

// CacheFingerprint returns a digest of the canonical cache JSON and logs on failure.
func CacheFingerprint(logger *zap.Logger, cache *domain.ToolCache) string {
	return hashWithLogger(logger, "cache", func() (string, error) {
		if cache == nil {
			cache = domain.NewToolCache()
		}
		return hashJSON(cache)
	})
}

// ToolSetFingerprint returns a digest of a flattened tool list.
func ToolSetFingerprint(logger *zap.Logger, tools []domain.ToolSchema) string {
	return hashWithLogger(logger, "tool_set", func() (string, error) {
		if tools == nil {
			tools = []domain.ToolSchema{}
		}
		return hashJSON(tools)
	})
}

func hashJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	digest, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return digest
}
