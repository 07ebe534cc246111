package engagement

import (
	"context"
	"fmt"

	"anoa.com/threadfeed/internal/entity"
	engagementRepo "anoa.com/threadfeed/internal/modules/engagement/repository"
	"anoa.com/threadfeed/pkg/apperror"
	"github.com/google/uuid"
)

type Result struct {
	Active  bool
	Outcome engagementRepo.Outcome
	// Event is set when the change is worth notifying the thread owner about.
	Event *entity.EngagementEvent
}

// Ledger applies toggle semantics and raises engagement facts. It never
// delivers notifications itself.
type Ledger interface {
	ToggleLike(ctx context.Context, thread *entity.Thread, userID uuid.UUID) (*Result, error)
	ToggleRepost(ctx context.Context, thread *entity.Thread, userID uuid.UUID, quoteText *string) (*Result, error)
	ToggleBookmark(ctx context.Context, thread *entity.Thread, userID uuid.UUID) (*Result, error)
	SetReaction(ctx context.Context, thread *entity.Thread, userID uuid.UUID, kind string) (*Result, error)
	// RecordQuote marks the quoted thread as reposted by userID.
	RecordQuote(ctx context.Context, quoted *entity.Thread, userID uuid.UUID, caption string) (*Result, error)

	CallerState(ctx context.Context, threadIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]engagementRepo.CallerState, error)
	ReactionCounts(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID]map[entity.ReactionKind]int64, error)
}

type ledger struct {
	repo engagementRepo.EngagementRepository
}

func NewLedger(repo engagementRepo.EngagementRepository) Ledger {
	return &ledger{repo: repo}
}

func (l *ledger) ToggleLike(ctx context.Context, thread *entity.Thread, userID uuid.UUID) (*Result, error) {
	active, err := l.repo.ToggleLike(ctx, thread.ID, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return toggled(active, entity.EventLike, thread, userID), nil
}

func (l *ledger) ToggleRepost(ctx context.Context, thread *entity.Thread, userID uuid.UUID, quoteText *string) (*Result, error) {
	active, err := l.repo.ToggleRepost(ctx, thread.ID, userID, quoteText)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return toggled(active, entity.EventRepost, thread, userID), nil
}

func (l *ledger) ToggleBookmark(ctx context.Context, thread *entity.Thread, userID uuid.UUID) (*Result, error) {
	active, err := l.repo.ToggleBookmark(ctx, thread.ID, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !active {
		return &Result{Outcome: engagementRepo.OutcomeRemoved}, nil
	}
	return &Result{Active: true, Outcome: engagementRepo.OutcomeAdded}, nil
}

func (l *ledger) SetReaction(ctx context.Context, thread *entity.Thread, userID uuid.UUID, kind string) (*Result, error) {
	parsed, err := entity.ParseReactionKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), apperror.ErrInvalidInput)
	}

	outcome, err := l.repo.SetReaction(ctx, thread.ID, userID, parsed)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &Result{Active: outcome != engagementRepo.OutcomeRemoved, Outcome: outcome}, nil
}

func (l *ledger) RecordQuote(ctx context.Context, quoted *entity.Thread, userID uuid.UUID, caption string) (*Result, error) {
	created, err := l.repo.UpsertQuoteRepost(ctx, quoted.ID, userID, caption)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	outcome := engagementRepo.OutcomeChanged
	if created {
		outcome = engagementRepo.OutcomeAdded
	}
	return &Result{Active: true, Outcome: outcome, Event: event(entity.EventQuote, quoted, userID)}, nil
}

func (l *ledger) CallerState(ctx context.Context, threadIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]engagementRepo.CallerState, error) {
	states, err := l.repo.CallerState(ctx, threadIDs, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return states, nil
}

func (l *ledger) ReactionCounts(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID]map[entity.ReactionKind]int64, error) {
	counts, err := l.repo.ReactionCounts(ctx, threadIDs)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return counts, nil
}

func toggled(active bool, kind entity.EventKind, thread *entity.Thread, userID uuid.UUID) *Result {
	res := &Result{Active: active, Outcome: engagementRepo.OutcomeRemoved}
	if active {
		res.Outcome = engagementRepo.OutcomeAdded
		res.Event = event(kind, thread, userID)
	}
	return res
}

// event is nil for self-engagement.
func event(kind entity.EventKind, thread *entity.Thread, actorID uuid.UUID) *entity.EngagementEvent {
	if thread.AuthorID == actorID {
		return nil
	}
	return &entity.EngagementEvent{
		Kind:     kind,
		ThreadID: thread.ID,
		ActorID:  actorID,
		OwnerID:  thread.AuthorID,
	}
}
