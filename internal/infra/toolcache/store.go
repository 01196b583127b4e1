package toolcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/fsutil"
	"mcpscout/internal/infra/telemetry"
)

// FileStore keeps the tool cache as a single JSON artifact. Writes replace
// the file atomically so readers never observe a partial cache.
type FileStore struct {
	path   string
	logger *zap.Logger
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if path == "" {
		path = domain.DefaultCachePath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger.Named("toolcache")}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Persist(cache *domain.ToolCache) error {
	if cache == nil {
		cache = domain.NewToolCache()
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return &domain.AggregationError{Path: s.path, Err: fmt.Errorf("encode cache: %w", err)}
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		s.logger.Warn("tool cache persist failed",
			telemetry.EventField(telemetry.EventCachePersistFail),
			zap.String("path", s.path),
			zap.Error(err),
		)
		return &domain.AggregationError{Path: s.path, Err: err}
	}
	s.logger.Info("tool cache persisted",
		telemetry.EventField(telemetry.EventCachePersisted),
		zap.String("path", s.path),
		zap.Int("providers", cache.Len()),
		zap.Int("tools", cache.ToolCount()),
	)
	return nil
}

// Load returns the persisted cache. A missing or unreadable cache yields an
// empty cache together with an error matching ErrCacheUnavailable.
func (s *FileStore) Load() (*domain.ToolCache, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewToolCache(), fmt.Errorf("%w: %s does not exist", domain.ErrCacheUnavailable, s.path)
		}
		return domain.NewToolCache(), fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	cache := domain.NewToolCache()
	if err := json.Unmarshal(data, cache); err != nil {
		return domain.NewToolCache(), fmt.Errorf("%w: decode %s: %v", domain.ErrCacheUnavailable, s.path, err)
	}
	return cache, nil
}

var _ domain.CacheStore = (*FileStore)(nil)
