package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"anoa.com/threadfeed/internal/entity"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows []entity.Notification
	err  error
}

func (m *memoryRepo) Create(_ context.Context, n *entity.Notification) error {
	if m.err != nil {
		return m.err
	}
	n.ID = uuid.New()
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memoryRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	var out []entity.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryRepo) MarkAllAsRead(_ context.Context, userID uuid.UUID) error {
	for i := range m.rows {
		if m.rows[i].UserID == userID {
			m.rows[i].IsRead = true
		}
	}
	return nil
}

func (m *memoryRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.UserID == userID && !r.IsRead {
			n++
		}
	}
	return n, nil
}

func TestNotifyStoresAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	owner, actor := uuid.New(), uuid.New()

	sub := rdb.Subscribe(ctx, Channel(owner))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	repo := &memoryRepo{}
	svc := NewNotificationService(repo, rdb)

	event := entity.EngagementEvent{Kind: entity.EventLike, ThreadID: uuid.New(), ActorID: actor, OwnerID: owner}
	require.NoError(t, svc.Notify(ctx, event))

	require.Len(t, repo.rows, 1)
	assert.Equal(t, "liked your thread", repo.rows[0].Message)

	select {
	case msg := <-sub.Channel():
		var got entity.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, actor, got.ActorID)
		assert.Equal(t, entity.EventLike, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not published")
	}

	unread, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, svc.MarkAllAsRead(ctx, owner))
	unread, _ = svc.UnreadCount(ctx, owner)
	assert.Equal(t, int64(0), unread)
}

func TestNotifyIgnoresSelfAndWorksWithoutRedis(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewNotificationService(repo, nil)
	self := uuid.New()

	require.NoError(t, svc.Notify(context.Background(), entity.EngagementEvent{Kind: entity.EventReply, ActorID: self, OwnerID: self}))
	assert.Empty(t, repo.rows)

	require.NoError(t, svc.Notify(context.Background(), entity.EngagementEvent{Kind: entity.EventMention, ActorID: self, OwnerID: uuid.New()}))
	require.Len(t, repo.rows, 1)
	assert.Equal(t, "mentioned you in a thread", repo.rows[0].Message)
}

func TestNotifyStoreFailure(t *testing.T) {
	svc := NewNotificationService(&memoryRepo{err: errors.New("insert failed")}, nil)
	err := svc.Notify(context.Background(), entity.EngagementEvent{ActorID: uuid.New(), OwnerID: uuid.New()})
	assert.Error(t, err)
}
