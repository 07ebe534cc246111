package dto

import "github.com/google/uuid"

type MediaRequest struct {
	URL    string `json:"url" binding:"required,url"`
	Type   string `json:"type" binding:"required,oneof=image video gif"`
	Width  *int   `json:"width" binding:"omitempty,min=1"`
	Height *int   `json:"height" binding:"omitempty,min=1"`
}

type CreateThreadRequest struct {
	Content         string         `json:"content" binding:"required,max=2000"`
	ParentID        *uuid.UUID     `json:"parent_id"`
	ReplyPermission string         `json:"reply_permission" binding:"omitempty,oneof=ANYONE FOLLOWERS FOLLOWING MENTIONED_ONLY"`
	Media           []MediaRequest `json:"media" binding:"omitempty,max=4,dive"`
}

type CreateQuoteRequest struct {
	Content string         `json:"content" binding:"required,max=2000"`
	Media   []MediaRequest `json:"media" binding:"omitempty,max=4,dive"`
}

type UpdateThreadRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

type DeleteThreadResponse struct {
	Deleted bool `json:"deleted"`
}
