package handler

import (
	"net/http"
	"strconv"

	notifService "anoa.com/threadfeed/internal/modules/notification/service"
	"anoa.com/threadfeed/pkg/apperror"
	"anoa.com/threadfeed/pkg/response"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service notifService.NotificationService
}

func NewNotificationHandler(service notifService.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := h.service.GetNotifications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.ResponseError(c, apperror.Internal(err))
		return
	}
	unread, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, apperror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notifications, "unread": unread})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		response.ResponseError(c, apperror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}
