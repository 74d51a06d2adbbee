package server

import (
	"net/http"
	"strings"

	"courier/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades authenticated requests and hands the
// connection to the hub for event delivery.
type WebSocketHandler struct {
	hub         *Hub
	authService *services.AuthService
}

func NewWebSocketHandler(hub *Hub, authService *services.AuthService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
	}
}

// Handle upgrades HTTP to WebSocket
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.authService.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.hub.log != nil {
			h.hub.log.Errorf("websocket upgrade failed user=%s: %s", userID, err)
		}
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.hub, conn, userID, clientID)

	h.hub.register <- client
}

func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	// Check query parameter
	token := c.Query("token")
	if token != "" {
		return token
	}

	// Check Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return ""
}
