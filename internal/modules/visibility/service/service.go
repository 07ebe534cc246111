package visibility

import (
	"context"
	"fmt"

	"anoa.com/threadfeed/internal/entity"
	"anoa.com/threadfeed/pkg/apperror"
	"github.com/google/uuid"
)

type FollowChecker interface {
	Follows(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
}

type MentionChecker interface {
	IsMentioned(ctx context.Context, threadID, userID uuid.UUID) (bool, error)
}

type Guard interface {
	// CanRead returns nil, ErrNotFound, ErrUnauthenticated or ErrAccessDenied.
	CanRead(ctx context.Context, thread *entity.Thread, callerID *uuid.UUID) error
	// CanReply applies the parent's reply permission to a would-be replier.
	CanReply(ctx context.Context, parent *entity.Thread, callerID uuid.UUID) error
}

type guard struct {
	follows  FollowChecker
	mentions MentionChecker
}

func NewGuard(follows FollowChecker, mentions MentionChecker) Guard {
	return &guard{follows: follows, mentions: mentions}
}

func (g *guard) CanRead(ctx context.Context, thread *entity.Thread, callerID *uuid.UUID) error {
	if thread == nil || thread.IsDeleted {
		return fmt.Errorf("thread not found: %w", apperror.ErrNotFound)
	}
	if thread.IsPublic {
		return nil
	}
	if callerID == nil {
		return fmt.Errorf("sign in to view this thread: %w", apperror.ErrUnauthenticated)
	}
	return g.check(ctx, thread, *callerID, "view")
}

func (g *guard) CanReply(ctx context.Context, parent *entity.Thread, callerID uuid.UUID) error {
	if parent == nil || parent.IsDeleted {
		return fmt.Errorf("thread not found: %w", apperror.ErrNotFound)
	}
	if parent.ReplyPermission == entity.ReplyAnyone {
		return nil
	}
	return g.check(ctx, parent, callerID, "reply to")
}

func (g *guard) check(ctx context.Context, thread *entity.Thread, callerID uuid.UUID, action string) error {
	if thread.AuthorID == callerID {
		return nil
	}

	switch thread.ReplyPermission {
	case entity.ReplyAnyone:
		return nil

	case entity.ReplyFollowers:
		ok, err := g.follows.Follows(ctx, callerID, thread.AuthorID)
		if err != nil {
			return apperror.Internal(err)
		}
		if !ok {
			return apperror.Denied(fmt.Sprintf("only followers of the author can %s this thread", action))
		}
		return nil

	case entity.ReplyFollowing:
		ok, err := g.follows.Follows(ctx, thread.AuthorID, callerID)
		if err != nil {
			return apperror.Internal(err)
		}
		if !ok {
			return apperror.Denied(fmt.Sprintf("only people the author follows can %s this thread", action))
		}
		return nil

	case entity.ReplyMentionedOnly:
		ok, err := g.mentions.IsMentioned(ctx, thread.ID, callerID)
		if err != nil {
			return apperror.Internal(err)
		}
		if !ok {
			return apperror.Denied(fmt.Sprintf("only mentioned users can %s this thread", action))
		}
		return nil
	}

	return apperror.Denied(fmt.Sprintf("you cannot %s this thread", action))
}
