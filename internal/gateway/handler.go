package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"salon-chat/internal/services"
	"salon-chat/internal/typing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP to WebSocket and hands the connection to the hub.
type Handler struct {
	hub         *Hub
	authService *services.AuthService
	convService *services.ConversationService
	msgService  *services.MessageService
	coordinator *typing.Coordinator
	logger      *WSLogger
}

func NewHandler(hub *Hub, authService *services.AuthService, convService *services.ConversationService, msgService *services.MessageService, coordinator *typing.Coordinator) *Handler {
	return &Handler{
		hub:         hub,
		authService: authService,
		convService: convService,
		msgService:  msgService,
		coordinator: coordinator,
		logger:      NewWSLogger(),
	}
}

func (h *Handler) Handle(c *gin.Context) {
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

	participantID, role, err := h.authService.Identity(claims)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid identity"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", participantID, "", err)
		return
	}

	client := NewClient(h.hub, conn, participantID, role, h.convService, h.msgService, h.coordinator, h.logger)
	h.hub.Register(client)
}

func (h *Handler) extractToken(c *gin.Context) string {
	token := c.Query("token")
	if token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return ""
}
