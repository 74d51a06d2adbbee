package handler

import (
	"net/http"

	"courier/internal/domain/message"
	"courier/internal/services"
	"courier/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	receiverID, err := parseUUID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiver_id", "INVALID_REQUEST"))
		return
	}

	in := services.SendInput{
		SenderID:   userID,
		ReceiverID: receiverID,
		Content:    req.Content,
	}
	if req.ParentID != "" {
		parentID, err := parseUUID(req.ParentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid parent_id", "INVALID_REQUEST"))
			return
		}
		in.ParentID = uuid.NullUUID{UUID: parentID, Valid: true}
	}

	msg, err := h.service.Send(c.Request.Context(), in)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	msg, err := h.service.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) History(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	history, err := h.service.History(c.Request.Context(), messageID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"history": history}))
}

func (h *MessageHandler) Unread(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	messages, err := h.service.UnreadForUser(c.Request.Context(), userID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	if messages == nil {
		messages = []message.Message{}
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": messages}))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	count, err := h.service.CountUnreadForUser(c.Request.Context(), userID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{Count: count}))
}

func (h *MessageHandler) UnreadBySender(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	rows, err := h.service.UnreadCountBySender(c.Request.Context(), userID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"senders": rows}))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req httpdto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	ids, err := parseUUIDs(req.MessageIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message_ids", "INVALID_REQUEST"))
		return
	}

	updated, err := h.service.MarkAsReadForUser(c.Request.Context(), userID, ids)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{Updated: updated}))
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	otherID, err := parseUUID(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	threads, err := h.service.Conversation(c.Request.Context(), userID, otherID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	if threads == nil {
		threads = []*services.ThreadNode{}
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"threads": threads}))
}
