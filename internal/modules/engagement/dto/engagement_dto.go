package dto

type ToggleResponse struct {
	Active bool `json:"active"`
}

type RepostRequest struct {
	QuoteText *string `json:"quote_text" binding:"omitempty,max=500"`
}

type ReactionRequest struct {
	Kind string `json:"kind" binding:"required"`
}
