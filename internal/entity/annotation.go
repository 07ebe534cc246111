package entity

import (
	"time"

	"github.com/google/uuid"
)

type Hashtag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Tag        string    `gorm:"size:100;uniqueIndex;not null" json:"tag"`
	UsageCount int64     `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ThreadHashtag struct {
	ThreadID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"thread_id"`
	HashtagID uint      `gorm:"primaryKey;index" json:"hashtag_id"`
	Hashtag   Hashtag   `gorm:"constraint:OnDelete:CASCADE" json:"hashtag"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ThreadMention offsets count characters (runes) in the thread content.
type ThreadMention struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ThreadID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_thread_mention_span,priority:1" json:"thread_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_thread_mention_span,priority:2;index" json:"user_id"`
	User        User      `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	StartOffset int       `gorm:"not null;uniqueIndex:idx_thread_mention_span,priority:3" json:"start_offset"`
	EndOffset   int       `gorm:"not null" json:"end_offset"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
