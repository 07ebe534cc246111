package service

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/threadfeed/internal/entity"
	notifRepo "anoa.com/threadfeed/internal/modules/notification/repository"
	"anoa.com/threadfeed/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type NotificationService interface {
	// Notify turns an engagement fact into a stored notification and
	// publishes it on the recipient's channel. Self-engagement is ignored.
	Notify(ctx context.Context, event entity.EngagementEvent) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
	}
}

func Channel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

func (s *notificationService) Notify(ctx context.Context, event entity.EngagementEvent) error {
	if event.ActorID == event.OwnerID {
		return nil
	}

	notification := &entity.Notification{
		UserID:   event.OwnerID,
		ActorID:  event.ActorID,
		ThreadID: event.ThreadID,
		Type:     event.Kind,
		Message:  message(event.Kind),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err == nil {
			err = s.redisClient.Publish(ctx, Channel(notification.UserID), payload).Err()
		}
		if err != nil {
			logger.Warn().Err(err).Str("user_id", notification.UserID.String()).Msg("publish notification")
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func message(kind entity.EventKind) string {
	switch kind {
	case entity.EventLike:
		return "liked your thread"
	case entity.EventRepost:
		return "reposted your thread"
	case entity.EventQuote:
		return "quoted your thread"
	case entity.EventReply:
		return "replied to your thread"
	case entity.EventMention:
		return "mentioned you in a thread"
	}
	return "interacted with your thread"
}
