package dto

import "github.com/google/uuid"

type AuthorResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
}

type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

type SearchQuery struct {
	Query string `form:"q" binding:"required,min=1,max=200"`
	PageQuery
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

type PaginatedThreadResponse struct {
	Data []ThreadResponse `json:"data"`
	Meta PaginationMeta   `json:"meta"`
}

type MediaResponse struct {
	Position int    `json:"position"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
}

type ReactionsResponse struct {
	Counts      map[string]int64 `json:"counts"`
	UserReacted *string          `json:"user_reacted"`
}

// ThreadResponse is the rendered thread as seen by one caller.
type ThreadResponse struct {
	ID              uuid.UUID      `json:"id"`
	Author          AuthorResponse `json:"author"`
	Content         string         `json:"content"`
	Kind            string         `json:"kind"`
	ParentID        *uuid.UUID     `json:"parent_id"`
	RootID          *uuid.UUID     `json:"root_id"`
	Level           int            `json:"level"`
	Path            string         `json:"path"`
	QuotedThreadID  *uuid.UUID     `json:"quoted_thread_id"`
	QuoteCaption    *string        `json:"quote_caption"`
	ReplyPermission string         `json:"reply_permission"`
	IsPublic        bool           `json:"is_public"`
	IsEdited        bool           `json:"is_edited"`
	EditedAt        *string        `json:"edited_at"`

	LikesCount     int64 `json:"likes_count"`
	RepliesCount   int64 `json:"replies_count"`
	RepostsCount   int64 `json:"reposts_count"`
	BookmarksCount int64 `json:"bookmarks_count"`
	ViewsCount     int64 `json:"views_count"`

	Media     []MediaResponse   `json:"media"`
	Hashtags  []string          `json:"hashtags"`
	Mentions  []string          `json:"mentions"`
	Reactions ReactionsResponse `json:"reactions"`

	IsLiked      bool    `json:"is_liked"`
	IsReposted   bool    `json:"is_reposted"`
	IsBookmarked bool    `json:"is_bookmarked"`
	MyReaction   *string `json:"my_reaction"`

	QuotedThread *ThreadResponse `json:"quoted_thread,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type HashtagResponse struct {
	Tag        string `json:"tag"`
	UsageCount int64  `json:"usage_count"`
}
