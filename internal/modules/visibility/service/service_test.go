package visibility

import (
	"context"
	"errors"
	"testing"

	"anoa.com/threadfeed/internal/entity"
	"anoa.com/threadfeed/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type edge struct{ from, to uuid.UUID }

type graph struct {
	follows  map[edge]bool
	mentions map[edge]bool // thread -> user
	err      error
}

func (g *graph) Follows(_ context.Context, a, b uuid.UUID) (bool, error) {
	return g.follows[edge{a, b}], g.err
}

func (g *graph) IsMentioned(_ context.Context, threadID, userID uuid.UUID) (bool, error) {
	return g.mentions[edge{threadID, userID}], g.err
}

func TestCanRead(t *testing.T) {
	author, follower, followed, mentioned, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()

	thread := func(perm entity.ReplyPermission) *entity.Thread {
		return &entity.Thread{
			ID:              uuid.New(),
			AuthorID:        author,
			ReplyPermission: perm,
			IsPublic:        perm.IsPublic(),
		}
	}
	ptr := func(id uuid.UUID) *uuid.UUID { return &id }

	public := thread(entity.ReplyAnyone)
	followers := thread(entity.ReplyFollowers)
	following := thread(entity.ReplyFollowing)
	mentionOnly := thread(entity.ReplyMentionedOnly)
	deleted := thread(entity.ReplyAnyone)
	deleted.IsDeleted = true
	unknown := thread("SECRET")
	unknown.IsPublic = false

	g := &graph{
		follows: map[edge]bool{
			{follower, author}: true,
			{author, followed}: true,
		},
		mentions: map[edge]bool{{mentionOnly.ID, mentioned}: true},
	}
	guard := NewGuard(g, g)

	cases := []struct {
		name   string
		thread *entity.Thread
		caller *uuid.UUID
		want   error
	}{
		{name: "public anonymous", thread: public, caller: nil},
		{name: "public stranger", thread: public, caller: ptr(stranger)},
		{name: "deleted", thread: deleted, caller: ptr(author), want: apperror.ErrNotFound},
		{name: "missing", thread: nil, caller: nil, want: apperror.ErrNotFound},
		{name: "followers anonymous", thread: followers, caller: nil, want: apperror.ErrUnauthenticated},
		{name: "followers non-follower", thread: followers, caller: ptr(stranger), want: apperror.ErrAccessDenied},
		{name: "followers follower", thread: followers, caller: ptr(follower)},
		{name: "followers reverse edge is not enough", thread: followers, caller: ptr(followed), want: apperror.ErrAccessDenied},
		{name: "following followed by author", thread: following, caller: ptr(followed)},
		{name: "following mere follower", thread: following, caller: ptr(follower), want: apperror.ErrAccessDenied},
		{name: "mentioned only mentioned", thread: mentionOnly, caller: ptr(mentioned)},
		{name: "mentioned only stranger", thread: mentionOnly, caller: ptr(stranger), want: apperror.ErrAccessDenied},
		{name: "author reads own private thread", thread: mentionOnly, caller: ptr(author)},
		{name: "unknown permission", thread: unknown, caller: ptr(follower), want: apperror.ErrAccessDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := guard.CanRead(context.Background(), tc.thread, tc.caller)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCanReplyUsesParentPolicy(t *testing.T) {
	author, follower, stranger := uuid.New(), uuid.New(), uuid.New()
	g := &graph{follows: map[edge]bool{{follower, author}: true}}
	guard := NewGuard(g, g)

	parent := &entity.Thread{ID: uuid.New(), AuthorID: author, ReplyPermission: entity.ReplyFollowers}

	assert.NoError(t, guard.CanReply(context.Background(), parent, follower))
	assert.NoError(t, guard.CanReply(context.Background(), parent, author))

	err := guard.CanReply(context.Background(), parent, stranger)
	assert.ErrorIs(t, err, apperror.ErrAccessDenied)
	assert.Contains(t, err.Error(), "reply to")

	open := &entity.Thread{ID: uuid.New(), AuthorID: author, ReplyPermission: entity.ReplyAnyone, IsPublic: true}
	assert.NoError(t, guard.CanReply(context.Background(), open, stranger))
}

func TestCheckerFailureIsInternal(t *testing.T) {
	g := &graph{err: errors.New("db down")}
	guard := NewGuard(g, g)
	caller := uuid.New()
	thread := &entity.Thread{ID: uuid.New(), AuthorID: uuid.New(), ReplyPermission: entity.ReplyFollowers}

	err := guard.CanRead(context.Background(), thread, &caller)
	assert.ErrorIs(t, err, apperror.ErrInternal)
}
