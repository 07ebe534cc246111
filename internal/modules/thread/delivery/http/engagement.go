package handler

import (
	"errors"
	"io"
	"net/http"

	engagementDto "anoa.com/threadfeed/internal/modules/engagement/dto"
	"anoa.com/threadfeed/pkg/response"
	"anoa.com/threadfeed/pkg/validator"
	"github.com/gin-gonic/gin"
)

func (h *ThreadHandler) ToggleLike(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.ToggleLike(c.Request.Context(), id, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ToggleRepost accepts an empty body for a plain repost.
func (h *ThreadHandler) ToggleRepost(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	var req engagementDto.RepostRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.ToggleRepost(c.Request.Context(), id, userID, req.QuoteText)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) ToggleBookmark(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.ToggleBookmark(c.Request.Context(), id, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) SetReaction(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	var req engagementDto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.SetReaction(c.Request.Context(), id, userID, req.Kind)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
