package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	threadDto "anoa.com/threadfeed/internal/modules/thread/dto"
	thread "anoa.com/threadfeed/internal/modules/thread/service"
	commonDto "anoa.com/threadfeed/pkg/dto"
	"anoa.com/threadfeed/pkg/ratelimiter"
	"anoa.com/threadfeed/pkg/response"
	"anoa.com/threadfeed/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ThreadHandler struct {
	service thread.Service
}

func NewThreadHandler(service thread.Service) *ThreadHandler {
	return &ThreadHandler{service: service}
}

func (h *ThreadHandler) CreateThread(c *gin.Context) {
	var req threadDto.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.CreateThread(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ThreadHandler) CreateQuote(c *gin.Context) {
	quotedID, ok := threadID(c)
	if !ok {
		return
	}

	var req threadDto.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.CreateQuoteRepost(c.Request.Context(), userID, quotedID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	res, err := h.service.GetThread(c.Request.Context(), id, response.GetOptionalUserID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) UpdateThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	var req threadDto.UpdateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.EditThread(c.Request.Context(), id, userID, req.Content)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	deleted, err := h.service.DeleteThread(c.Request.Context(), id, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, threadDto.DeleteThreadResponse{Deleted: deleted})
}

func (h *ThreadHandler) ListThreads(c *gin.Context) {
	var q commonDto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.ListTopThreads(c.Request.Context(), response.GetOptionalUserID(c), q.Page, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) TrendingThreads(c *gin.Context) {
	var q commonDto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.TrendingThreads(c.Request.Context(), response.GetOptionalUserID(c), q.Page, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) SearchThreads(c *gin.Context) {
	var q commonDto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.SearchThreads(c.Request.Context(), q.Query, response.GetOptionalUserID(c), q.Page, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) ListReplies(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	res, err := h.service.ListReplies(c.Request.Context(), id, response.GetOptionalUserID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *ThreadHandler) ListConversation(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	res, err := h.service.ListConversation(c.Request.Context(), id, response.GetOptionalUserID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *ThreadHandler) ThreadsByUser(c *gin.Context) {
	var q commonDto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.ListByAuthor(c.Request.Context(), c.Param("username"), response.GetOptionalUserID(c), q.Page, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) ThreadsByHashtag(c *gin.Context) {
	var q commonDto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.ThreadsByHashtag(c.Request.Context(), c.Param("tag"), response.GetOptionalUserID(c), q.Page, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ThreadHandler) TrendingHashtags(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	res, err := h.service.TrendingHashtags(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func threadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError adds Retry-After for cooldown rejections.
func writeError(c *gin.Context, err error) {
	var rateLimitErr *ratelimiter.RateLimitError
	if errors.As(err, &rateLimitErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rateLimitErr.Message})
		return
	}
	response.ResponseError(c, err)
}
