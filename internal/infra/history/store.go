package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"mcpscout/internal/domain"
)

const (
	schemaVersion = 1

	runsBucketName = "runs"
	metaBucketName = "meta"
	versionKey     = "version"
)

var (
	ErrStoreClosed = errors.New("run history store is closed")
	ErrRunNotFound = errors.New("run not found")
)

// Store keeps finished run reports in a bbolt file, keyed so that a reverse
// cursor walk yields the newest run first.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
}

func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: trimmed}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) Record(_ context.Context, report domain.RunReport) error {
	if strings.TrimSpace(report.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", report.ID, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucketName))
		if err := bucket.Put(runKey(report), data); err != nil {
			return fmt.Errorf("write run %s: %w", report.ID, err)
		}
		return nil
	})
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(_ context.Context, limit int) ([]domain.RunReport, error) {
	var reports []domain.RunReport
	err := s.view(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(runsBucketName)).Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			if limit > 0 && len(reports) >= limit {
				return nil
			}
			var report domain.RunReport
			if err := json.Unmarshal(value, &report); err != nil {
				return fmt.Errorf("decode run %x: %w", key, err)
			}
			reports = append(reports, report)
		}
		return nil
	})
	return reports, err
}

func (s *Store) Get(_ context.Context, id string) (domain.RunReport, error) {
	var (
		report domain.RunReport
		found  bool
	)
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucketName)).ForEach(func(key, value []byte) error {
			if found || !strings.HasSuffix(string(key), id) {
				return nil
			}
			if err := json.Unmarshal(value, &report); err != nil {
				return fmt.Errorf("decode run %s: %w", id, err)
			}
			found = report.ID == id
			return nil
		})
	})
	if err != nil {
		return domain.RunReport{}, err
	}
	if !found {
		return domain.RunReport{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return report, nil
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

// runKey is the big-endian start time followed by the run id.
func runKey(report domain.RunReport) []byte {
	key := make([]byte, 8, 8+len(report.ID))
	binary.BigEndian.PutUint64(key, uint64(report.StartedAt.UnixNano()))
	return append(key, report.ID...)
}

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucketName)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucketName))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		current := readSchemaVersion(meta)
		switch {
		case current == 0:
			return writeSchemaVersion(meta, schemaVersion)
		case current > schemaVersion:
			return fmt.Errorf("unsupported run history schema version %d", current)
		default:
			return nil
		}
	})
}

func readSchemaVersion(meta *bolt.Bucket) int {
	raw := meta.Get([]byte(versionKey))
	if len(raw) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(raw))
}

func writeSchemaVersion(meta *bolt.Bucket, version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	if err := meta.Put([]byte(versionKey), buf); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

var _ domain.RunHistory = (*Store)(nil)
