package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventLike    EventKind = "like"
	EventRepost  EventKind = "repost"
	EventQuote   EventKind = "quote"
	EventReply   EventKind = "reply"
	EventMention EventKind = "mention"
)

// EngagementEvent is the fact handed to the notification collaborator.
type EngagementEvent struct {
	Kind     EventKind `json:"kind"`
	ThreadID uuid.UUID `json:"thread_id"`
	ActorID  uuid.UUID `json:"actor_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
}

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"` // recipient
	ActorID   uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`
	ThreadID  uuid.UUID `gorm:"type:uuid;not null" json:"thread_id"`
	Type      EventKind `gorm:"type:varchar(20);not null" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}
