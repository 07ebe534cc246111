package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ThreadLike struct {
	ThreadID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"thread_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type RepostKind string

const (
	RepostPlain RepostKind = "REPOST"
	RepostQuote RepostKind = "QUOTE"
)

// ThreadRepost duplicates Thread.Kind == QUOTE for quote reposts; kept so the
// per-user repost state is a single lookup.
type ThreadRepost struct {
	ThreadID  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"thread_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Kind      RepostKind `gorm:"size:10;not null" json:"kind"`
	QuoteText *string    `gorm:"type:text" json:"quote_text,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type ThreadBookmark struct {
	ThreadID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"thread_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ReactionKind string

const (
	ReactionLike  ReactionKind = "LIKE"
	ReactionLove  ReactionKind = "LOVE"
	ReactionLaugh ReactionKind = "LAUGH"
	ReactionWow   ReactionKind = "WOW"
	ReactionSad   ReactionKind = "SAD"
	ReactionAngry ReactionKind = "ANGRY"
)

var ReactionKinds = []ReactionKind{ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad, ReactionAngry}

func ParseReactionKind(s string) (ReactionKind, error) {
	k := ReactionKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ReactionKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown reaction kind %q", s)
}

// ThreadReaction holds at most one active kind per (thread, user).
type ThreadReaction struct {
	ThreadID  uuid.UUID    `gorm:"type:uuid;primaryKey" json:"thread_id"`
	UserID    uuid.UUID    `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Kind      ReactionKind `gorm:"size:10;not null" json:"kind"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}
