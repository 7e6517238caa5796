package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
	"github.com/projecthub-dev/projecthub/internal/utils"
)

type WebSocketHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	JWTSecret string
}

func NewWebSocketHandler(db *gorm.DB, hub *realtime.Hub, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{DB: db, Hub: hub, JWTSecret: jwtSecret}
}

// Upgrade gates the HTTP-to-websocket handshake. The token travels in the
// query string because browser websocket clients cannot set headers.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		token = c.Cookies("ph_token")
	}
	claims, err := utils.ParseJWT(h.JWTSecret, token)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	c.Locals("wsUserId", userUUID)
	return c.Next()
}

type wsEvent struct {
	Type           string `json:"type"`
	ProjectID      string `json:"project_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// Handler runs one connected socket: registers it with the hub, pumps its
// send buffer, and dispatches inbound events until the peer goes away.
func (h *WebSocketHandler) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userUUID, ok := conn.Locals("wsUserId").(uuid.UUID)
		if !ok {
			conn.Close()
			return
		}

		client := &realtime.Client{
			ID:     uuid.NewString(),
			UserID: userUUID,
			Conn:   realtime.NewWebSocketConn(conn),
			Send:   make(chan []byte, 256),
		}
		h.Hub.RegisterClient(client)
		defer h.Hub.UnregisterClient(client)

		done := make(chan struct{})
		go h.writePump(conn, client, done)
		defer close(done)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warnf("ws: read: %v", err)
				}
				return
			}

			var ev wsEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				continue
			}
			h.dispatch(client, ev)
		}
	})
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *realtime.Client, done chan struct{}) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(client *realtime.Client, ev wsEvent) {
	switch ev.Type {
	case "joinProjectRoom":
		if room, ok := h.projectRoomFor(client.UserID, ev.ProjectID); ok {
			h.Hub.Join(room, client)
		}
	case "leaveProjectRoom":
		if projectUUID, err := uuid.Parse(ev.ProjectID); err == nil {
			h.Hub.Leave(realtime.ProjectRoom(projectUUID), client)
		}
	case "joinConversation":
		if room, ok := h.conversationRoomFor(client.UserID, ev.ConversationID); ok {
			h.Hub.Join(room, client)
		}
	case "sendMessage":
		h.handleProjectMessage(client, ev)
	case "pong":
		// keepalive reply, nothing to do
	default:
		logger.Debugf("ws: unknown event type %q from %s", ev.Type, client.UserID)
	}
}

// projectRoomFor resolves a project room name, admitting participants only.
func (h *WebSocketHandler) projectRoomFor(userID uuid.UUID, rawID string) (string, bool) {
	projectUUID, err := uuid.Parse(rawID)
	if err != nil {
		return "", false
	}
	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return "", false
	}
	if !project.IsParticipant(userID) {
		return "", false
	}
	return realtime.ProjectRoom(projectUUID), true
}

func (h *WebSocketHandler) conversationRoomFor(userID uuid.UUID, rawID string) (string, bool) {
	convUUID, err := uuid.Parse(rawID)
	if err != nil {
		return "", false
	}
	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return "", false
	}
	if !conv.HasParticipant(userID) {
		return "", false
	}
	return realtime.ConversationRoom(convUUID), true
}

// handleProjectMessage persists a project room message and fans it out to
// room members under the receiveMessage event.
func (h *WebSocketHandler) handleProjectMessage(client *realtime.Client, ev wsEvent) {
	if ev.Content == "" {
		return
	}
	room, ok := h.projectRoomFor(client.UserID, ev.ProjectID)
	if !ok {
		return
	}
	projectUUID, _ := uuid.Parse(ev.ProjectID)

	msg := models.ProjectMessage{
		ProjectID: projectUUID,
		SenderID:  client.UserID,
		Content:   ev.Content,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		logger.Errorf("ws: persist project message: %v", err)
		return
	}
	h.DB.Preload("Sender").First(&msg, "id = ?", msg.ID)

	h.Hub.Publish(room, fiber.Map{
		"type":    "receiveMessage",
		"message": msg,
	})
}
