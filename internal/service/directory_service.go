package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/domain"
	"github.com/spec-kit/curator-desk/internal/repository"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// CuratorDirectory answers who is a curator.
type CuratorDirectory interface {
	IsCurator(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context) ([]domain.Curator, error)
	// NameOf returns an empty name for unknown users.
	NameOf(ctx context.Context, userID string) (string, error)
}

const directoryKeyPrefix = "curator-desk:curator:"

// DirectoryService reads curators from the repository and caches single
// lookups in redis. A nil redis client disables the cache.
type DirectoryService struct {
	curators repository.CuratorRepository
	cache    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
}

// DirectoryDependencies bundles collaborators.
type DirectoryDependencies struct {
	CuratorRepo repository.CuratorRepository
	Cache       *redis.Client
	CacheTTL    time.Duration
	Logger      *zap.Logger
}

// NewDirectoryService creates the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{
		curators: deps.CuratorRepo,
		cache:    deps.Cache,
		ttl:      deps.CacheTTL,
		logger:   logger,
	}
}

type directoryEntry struct {
	curator bool
	name    string
}

// IsCurator reports whether userID is an active curator.
func (s *DirectoryService) IsCurator(ctx context.Context, userID string) (bool, error) {
	entry, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	return entry.curator, nil
}

// NameOf returns the curator's display name or "" when unknown.
func (s *DirectoryService) NameOf(ctx context.Context, userID string) (string, error) {
	entry, err := s.lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	return entry.name, nil
}

// List returns active curators ordered by name.
func (s *DirectoryService) List(ctx context.Context) ([]domain.Curator, error) {
	curators, err := s.curators.List(ctx, true)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return curators, nil
}

// ListAll includes deactivated curators.
func (s *DirectoryService) ListAll(ctx context.Context) ([]domain.Curator, error) {
	curators, err := s.curators.List(ctx, false)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return curators, nil
}

// Register adds or updates a curator and drops its cached lookup.
func (s *DirectoryService) Register(ctx context.Context, id, displayName string, active bool) (*domain.Curator, error) {
	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(displayName)
	if id == "" || displayName == "" {
		return nil, apperrors.NewValidationError("id and display_name required", nil)
	}
	curator := &domain.Curator{ID: id, DisplayName: displayName, Active: active}
	if err := s.curators.Upsert(ctx, curator); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, directoryKeyPrefix+id).Err(); err != nil {
			s.logger.Warn("directory cache invalidation failed", zap.String("curator_id", id), zap.Error(err))
		}
	}
	return curator, nil
}

func (s *DirectoryService) lookup(ctx context.Context, userID string) (directoryEntry, error) {
	if userID == "" {
		return directoryEntry{}, nil
	}
	if entry, ok := s.cached(ctx, userID); ok {
		return entry, nil
	}

	var entry directoryEntry
	curator, err := s.curators.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return directoryEntry{}, apperrors.NewStoreUnavailable(err)
	default:
		entry = directoryEntry{curator: curator.Active, name: curator.DisplayName}
	}
	s.store(ctx, userID, entry)
	return entry, nil
}

func (s *DirectoryService) cached(ctx context.Context, userID string) (directoryEntry, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return directoryEntry{}, false
	}
	values, err := s.cache.HGetAll(ctx, directoryKeyPrefix+userID).Result()
	if err != nil {
		s.logger.Warn("directory cache read failed", zap.String("user_id", userID), zap.Error(err))
		return directoryEntry{}, false
	}
	flag, ok := values["curator"]
	if !ok {
		return directoryEntry{}, false
	}
	return directoryEntry{curator: flag == "1", name: values["name"]}, true
}

func (s *DirectoryService) store(ctx context.Context, userID string, entry directoryEntry) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	flag := "0"
	if entry.curator {
		flag = "1"
	}
	key := directoryKeyPrefix + userID
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "curator", flag, "name", entry.name)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		s.logger.Warn("directory cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}
