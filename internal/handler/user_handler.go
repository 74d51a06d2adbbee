package handler

import (
	"net/http"

	"courier/internal/services"
	"courier/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(u))
}

// Delete removes the authenticated user's account. The cascade takes the
// messages, histories and notifications with it; the response reports
// what went.
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	result, err := h.service.Delete(c.Request.Context(), userID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}
