package thread

import (
	"context"

	"anoa.com/threadfeed/internal/entity"
	engagementDto "anoa.com/threadfeed/internal/modules/engagement/dto"
	engagement "anoa.com/threadfeed/internal/modules/engagement/service"
	"github.com/google/uuid"
)

func (s *service) ToggleLike(ctx context.Context, id, callerID uuid.UUID) (*engagementDto.ToggleResponse, error) {
	return s.engage(ctx, id, callerID, func(t *entity.Thread) (*engagement.Result, error) {
		return s.ledger.ToggleLike(ctx, t, callerID)
	})
}

func (s *service) ToggleRepost(ctx context.Context, id, callerID uuid.UUID, quoteText *string) (*engagementDto.ToggleResponse, error) {
	return s.engage(ctx, id, callerID, func(t *entity.Thread) (*engagement.Result, error) {
		return s.ledger.ToggleRepost(ctx, t, callerID, quoteText)
	})
}

func (s *service) ToggleBookmark(ctx context.Context, id, callerID uuid.UUID) (*engagementDto.ToggleResponse, error) {
	return s.engage(ctx, id, callerID, func(t *entity.Thread) (*engagement.Result, error) {
		return s.ledger.ToggleBookmark(ctx, t, callerID)
	})
}

func (s *service) SetReaction(ctx context.Context, id, callerID uuid.UUID, kind string) (*engagementDto.ToggleResponse, error) {
	return s.engage(ctx, id, callerID, func(t *entity.Thread) (*engagement.Result, error) {
		return s.ledger.SetReaction(ctx, t, callerID, kind)
	})
}

// engage requires read access to the thread before any toggle.
func (s *service) engage(ctx context.Context, id, callerID uuid.UUID, apply func(*entity.Thread) (*engagement.Result, error)) (*engagementDto.ToggleResponse, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanRead(ctx, thread, &callerID); err != nil {
		return nil, err
	}

	res, err := apply(thread)
	if err != nil {
		return nil, err
	}
	if res.Event != nil {
		s.notify(ctx, *res.Event)
	}
	return &engagementDto.ToggleResponse{Active: res.Active}, nil
}
