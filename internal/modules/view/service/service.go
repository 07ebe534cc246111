package view

import (
	"context"
	"fmt"
	"time"

	"anoa.com/threadfeed/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pendingKey = "pending:thread_views"

type ViewCounter interface {
	IncrementViews(ctx context.Context, threadID uuid.UUID, n int64) error
}

type ViewService interface {
	// RecordView counts a view at most once per viewer per dedup window.
	// Anonymous views are not deduplicated.
	RecordView(ctx context.Context, threadID uuid.UUID, viewerID *uuid.UUID) error
	// SyncViews folds buffered counts into the store and returns how many
	// threads were updated.
	SyncViews(ctx context.Context) (int, error)
}

type viewService struct {
	redisClient *redis.Client
	counter     ViewCounter
	dedupWindow time.Duration
}

// NewViewService writes straight to the counter when redisClient is nil.
func NewViewService(redisClient *redis.Client, counter ViewCounter, dedupWindow time.Duration) ViewService {
	if dedupWindow <= 0 {
		dedupWindow = time.Hour
	}
	return &viewService{
		redisClient: redisClient,
		counter:     counter,
		dedupWindow: dedupWindow,
	}
}

func viewKey(threadID uuid.UUID) string {
	return fmt.Sprintf("thread:views:%s", threadID)
}

func userViewKey(threadID, userID uuid.UUID) string {
	return fmt.Sprintf("thread:user_view:%s:%s", threadID, userID)
}

func (s *viewService) RecordView(ctx context.Context, threadID uuid.UUID, viewerID *uuid.UUID) error {
	if s.redisClient == nil {
		return s.counter.IncrementViews(ctx, threadID, 1)
	}

	if viewerID != nil {
		first, err := s.redisClient.SetNX(ctx, userViewKey(threadID, *viewerID), "viewed", s.dedupWindow).Result()
		if err != nil {
			return fmt.Errorf("failed to mark user view: %w", err)
		}
		if !first {
			return nil
		}
	}

	pipe := s.redisClient.TxPipeline()
	pipe.Incr(ctx, viewKey(threadID))
	pipe.SAdd(ctx, pendingKey, threadID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to buffer view: %w", err)
	}
	return nil
}

func (s *viewService) SyncViews(ctx context.Context) (int, error) {
	if s.redisClient == nil {
		return 0, nil
	}

	threadIDs, err := s.redisClient.SMembers(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read pending views: %w", err)
	}

	synced := 0
	for _, raw := range threadIDs {
		threadID, err := uuid.Parse(raw)
		if err != nil {
			logger.Warn().Str("thread_id", raw).Msg("dropping invalid pending view id")
			s.redisClient.SRem(ctx, pendingKey, raw)
			continue
		}

		// Remove from pending first so a view racing with the sync re-adds it.
		if err := s.redisClient.SRem(ctx, pendingKey, raw).Err(); err != nil {
			logger.Error().Err(err).Str("thread_id", raw).Msg("failed to unqueue pending view")
			continue
		}

		n, err := s.redisClient.GetDel(ctx, viewKey(threadID)).Int64()
		if err == redis.Nil || (err == nil && n <= 0) {
			continue
		}
		if err != nil {
			logger.Error().Err(err).Str("thread_id", raw).Msg("failed to read buffered views")
			s.redisClient.SAdd(ctx, pendingKey, raw)
			continue
		}

		if err := s.counter.IncrementViews(ctx, threadID, n); err != nil {
			logger.Error().Err(err).Str("thread_id", raw).Int64("views", n).Msg("failed to persist views, requeueing")
			pipe := s.redisClient.TxPipeline()
			pipe.IncrBy(ctx, viewKey(threadID), n)
			pipe.SAdd(ctx, pendingKey, raw)
			pipe.Exec(ctx)
			continue
		}
		synced++
	}

	if synced > 0 {
		logger.Info().Int("threads", synced).Msg("synced thread views")
	}
	return synced, nil
}
