package handler

import (
	"net/http"

	"courier/internal/domain/notification"
	"courier/internal/services"
	"courier/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	unreadOnly := c.Query("unread") == "true"

	items, err := h.service.ListForUser(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"notifications": items}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req httpdto.MarkNotificationsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	ids, err := parseUUIDs(req.NotificationIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid notification_ids", "INVALID_REQUEST"))
		return
	}

	updated, err := h.service.MarkRead(c.Request.Context(), userID, ids)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{Updated: updated}))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	count, err := h.service.CountUnread(c.Request.Context(), userID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{Count: count}))
}
