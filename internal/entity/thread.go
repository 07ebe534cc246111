package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ThreadKind string

const (
	ThreadKindOriginal ThreadKind = "ORIGINAL"
	ThreadKindReply    ThreadKind = "REPLY"
	ThreadKindQuote    ThreadKind = "QUOTE"
	// ThreadKindRetweet is part of the stored kind set but is never written:
	// a plain repost is a thread_reposts row, not a thread.
	ThreadKindRetweet ThreadKind = "RETWEET"
)

// ReplyPermission gates who may read and reply to a thread.
type ReplyPermission string

const (
	ReplyAnyone        ReplyPermission = "ANYONE"
	ReplyFollowers     ReplyPermission = "FOLLOWERS"
	ReplyFollowing     ReplyPermission = "FOLLOWING"
	ReplyMentionedOnly ReplyPermission = "MENTIONED_ONLY"
)

// ParseReplyPermission converts the wire value once at the edge. An empty
// string means ANYONE.
func ParseReplyPermission(s string) (ReplyPermission, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ReplyAnyone, nil
	}
	switch p := ReplyPermission(s); p {
	case ReplyAnyone, ReplyFollowers, ReplyFollowing, ReplyMentionedOnly:
		return p, nil
	}
	return "", fmt.Errorf("unknown reply permission %q", s)
}

// IsPublic is the creation-time coupling between permission and visibility.
func (p ReplyPermission) IsPublic() bool {
	return p == ReplyAnyone
}

const PathSeparator = "."

type Thread struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Content  string     `gorm:"type:text;not null" json:"content"`
	Kind     ThreadKind `gorm:"size:20;not null;default:ORIGINAL" json:"kind"`

	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	RootID   *uuid.UUID `gorm:"type:uuid;index" json:"root_id,omitempty"`
	Level    int        `gorm:"not null;default:0" json:"level"`
	Path     string     `gorm:"type:text;not null;default:'';index" json:"path"`

	QuotedThreadID *uuid.UUID `gorm:"type:uuid;index" json:"quoted_thread_id,omitempty"`
	QuoteCaption   *string    `gorm:"type:text" json:"quote_caption,omitempty"`

	ReplyPermission ReplyPermission `gorm:"size:20;not null;default:ANYONE" json:"reply_permission"`
	IsPublic        bool            `gorm:"not null;default:true;index" json:"is_public"`
	IsDeleted       bool            `gorm:"not null;default:false;index" json:"is_deleted"`
	IsEdited        bool            `gorm:"not null;default:false" json:"is_edited"`
	EditedAt        *time.Time      `json:"edited_at,omitempty"`

	LikesCount     int64 `gorm:"not null;default:0" json:"likes_count"`
	RepliesCount   int64 `gorm:"not null;default:0" json:"replies_count"`
	RepostsCount   int64 `gorm:"not null;default:0" json:"reposts_count"`
	BookmarksCount int64 `gorm:"not null;default:0" json:"bookmarks_count"`
	ViewsCount     int64 `gorm:"not null;default:0" json:"views_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Thread) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID, err = uuid.NewV7()
	}
	return
}

func (t *Thread) IsTopLevel() bool {
	return t.ParentID == nil
}

// Ancestors decodes the materialized path, root first.
func (t *Thread) Ancestors() ([]uuid.UUID, error) {
	if t.Path == "" {
		return nil, nil
	}
	parts := strings.Split(t.Path, PathSeparator)
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("corrupt path segment %q on thread %s: %w", p, t.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SubtreePrefix is the path prefix shared by every descendant of t.
func (t *Thread) SubtreePrefix() string {
	if t.Path == "" {
		return t.ID.String()
	}
	return t.Path + PathSeparator + t.ID.String()
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

func ParseMediaType(s string) (MediaType, error) {
	switch m := MediaType(strings.ToLower(strings.TrimSpace(s))); m {
	case MediaImage, MediaVideo, MediaGIF:
		return m, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

type ThreadMedia struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uuid.UUID `gorm:"type:uuid;not null;index:idx_thread_media_order,priority:1" json:"thread_id"`
	Position  int       `gorm:"not null;index:idx_thread_media_order,priority:2" json:"position"`
	Type      MediaType `gorm:"size:20;not null" json:"type"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
