package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/pkg/cache"
)

// FileModelStore keeps the classifier artifact on local disk.
type FileModelStore struct {
	path string
}

func NewFileModelStore(path string) *FileModelStore { return &FileModelStore{path: path} }

func (s *FileModelStore) Load(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrModelUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return nil, models.ErrModelUnavailable
	}
	return b, nil
}

// Save writes through a temp file so readers never see a partial artifact.
func (s *FileModelStore) Save(_ context.Context, artifact []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".model-*")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(artifact); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}

// CacheModelStore keeps the artifact under a cache key with no expiry.
type CacheModelStore struct {
	cache cache.Service
	key   string
}

func NewCacheModelStore(c cache.Service, key string) *CacheModelStore {
	return &CacheModelStore{cache: c, key: key}
}

func (s *CacheModelStore) Load(ctx context.Context) ([]byte, error) {
	var b []byte
	err := s.cache.Get(ctx, s.key, &b)
	if errors.Is(err, cache.ErrCacheMiss) || (err == nil && len(b) == 0) {
		return nil, models.ErrModelUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", s.key, err)
	}
	return b, nil
}

func (s *CacheModelStore) Save(ctx context.Context, artifact []byte) error {
	if err := s.cache.Set(ctx, s.key, artifact, 0); err != nil {
		return fmt.Errorf("save model %s: %w", s.key, err)
	}
	return nil
}

var (
	_ domrepo.ModelStore = (*FileModelStore)(nil)
	_ domrepo.ModelStore = (*CacheModelStore)(nil)
)
