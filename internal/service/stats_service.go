package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/access"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// DashboardStats are the role-scoped counters shown on every dashboard.
type DashboardStats struct {
	Total    int64 `json:"total"`
	Critical int64 `json:"critical"`
	Open     int64 `json:"open"`
	Resolved int64 `json:"resolved"`
}

// StatsService computes dashboard counters over the actor's visible slice of
// the pool, cached briefly in Redis. Staleness up to the TTL is acceptable;
// the counters are informational, not part of the lifecycle contract.
type StatsService struct {
	incidents repository.IncidentRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewStatsService constructs the service. cache may be nil; the service then
// always queries the store directly.
func NewStatsService(incidents repository.IncidentRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &StatsService{
		incidents: incidents,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// DashboardStats returns counters scoped exactly like the actor's listing.
func (s *StatsService) DashboardStats(ctx context.Context, actor domain.Actor) (DashboardStats, error) {
	key := statsCacheKey(actor)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	scope := access.ScopeFor(actor)
	stats, err := s.incidents.Stats(ctx, repository.IncidentFilter{
		CreatedBy:         scope.CreatedBy,
		AssignedTo:        scope.AssignedTo,
		VisibleToReporter: scope.VisibleToReporter,
		VisibleToSupport:  scope.VisibleToSupport,
	})
	if err != nil {
		return DashboardStats{}, apperrors.MapError(err)
	}

	result := DashboardStats{
		Total:    stats.Total,
		Critical: stats.Critical,
		Open:     stats.Open,
		Resolved: stats.Resolved,
	}
	s.toCache(ctx, key, result)
	return result, nil
}

func statsCacheKey(actor domain.Actor) string {
	role := "reporter"
	if actor.IsAdmin {
		role = "admin"
	} else if actor.IsSupport {
		role = "support"
	}
	return fmt.Sprintf("dashboard:stats:%s:%s", role, actor.ID)
}

func (s *StatsService) fromCache(ctx context.Context, key string) (DashboardStats, bool) {
	if s.cache == nil {
		return DashboardStats{}, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return DashboardStats{}, false
	}
	var stats DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return DashboardStats{}, false
	}
	return stats, true
}

func (s *StatsService) toCache(ctx context.Context, key string, stats DashboardStats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Debug("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}
