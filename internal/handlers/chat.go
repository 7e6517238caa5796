package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
)

type ChatHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewChatHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub, RDB: rdb}
}

// CreateOrGetConversation opens a direct thread with another user, or
// returns the existing one regardless of who opened it first.
func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req struct {
		PeerID string `json:"peer_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PeerID == "" {
		return fail(c, fiber.StatusBadRequest, "peer_id is required")
	}

	peerUUID, err := uuid.Parse(req.PeerID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid peer ID")
	}
	if peerUUID == userUUID {
		return fail(c, fiber.StatusBadRequest, "Cannot open a conversation with yourself")
	}

	var peer models.User
	if err := h.DB.First(&peer, "id = ?", peerUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "User not found")
	}

	var conv models.Conversation
	err = h.DB.
		Where("(participant_one_id = ? AND participant_two_id = ?) OR (participant_one_id = ? AND participant_two_id = ?)",
			userUUID, peerUUID, peerUUID, userUUID).
		First(&conv).Error

	isNew := false
	if err == gorm.ErrRecordNotFound {
		conv = models.Conversation{
			ParticipantOneID: userUUID,
			ParticipantTwoID: peerUUID,
			LastMessageAt:    time.Now(),
		}
		if err := h.DB.Create(&conv).Error; err != nil {
			logger.Errorf("create conversation: %v", err)
			return fail(c, fiber.StatusInternalServerError, "Failed to create conversation")
		}
		isNew = true
	} else if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch conversation")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"created": isNew,
		"data":    conv,
	})
}

type ConversationOut struct {
	ID            uuid.UUID       `json:"id"`
	Peer          *models.User    `json:"peer,omitempty"`
	LastMessage   *models.Message `json:"last_message,omitempty"`
	LastMessageAt time.Time       `json:"last_message_at"`
	UnreadCount   int64           `json:"unread_count"`
}

// GetConversations lists the caller's threads with peer, last message and
// unread count, most recent activity first.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var convs []models.Conversation
	if err := h.DB.
		Preload("ParticipantOne").
		Preload("ParticipantTwo").
		Where("participant_one_id = ? OR participant_two_id = ?", userUUID, userUUID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch conversations")
	}

	out := make([]ConversationOut, 0, len(convs))
	for _, conv := range convs {
		peer := conv.ParticipantOne
		if conv.ParticipantOneID == userUUID {
			peer = conv.ParticipantTwo
		}

		var unread int64
		h.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conv.ID, userUUID, false).
			Count(&unread)

		var last models.Message
		var lastPtr *models.Message
		if err := h.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").
			First(&last).Error; err == nil {
			lastPtr = &last
		}

		out = append(out, ConversationOut{
			ID:            conv.ID,
			Peer:          peer,
			LastMessage:   lastPtr,
			LastMessageAt: conv.LastMessageAt,
			UnreadCount:   unread,
		})
	}
	return ok(c, out)
}

// GetMessages returns a thread's messages oldest-first and marks the
// peer's messages read as a side effect of the fetch.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid conversation ID")
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Conversation not found")
	}
	if !conv.HasParticipant(userUUID) {
		return fail(c, fiber.StatusForbidden, "Access denied")
	}

	var messages []models.Message
	if err := h.DB.
		Where("conversation_id = ?", convUUID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch messages")
	}

	if err := h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convUUID, userUUID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error; err != nil {
		// fetch still succeeds, the next one will retry
		logger.Warnf("mark messages read: %v", err)
	}

	return ok(c, messages)
}

// SendMessage persists a direct message, bumps the thread, publishes to
// the conversation room and nudges the recipient's notification channel.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid conversation ID")
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return fail(c, fiber.StatusBadRequest, "Text is required")
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Conversation not found")
	}
	if !conv.HasParticipant(userUUID) {
		return fail(c, fiber.StatusForbidden, "Access denied")
	}

	msg := models.Message{
		ConversationID: convUUID,
		SenderID:       userUUID,
		Text:           req.Text,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		logger.Errorf("create message: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to send message")
	}

	_ = h.DB.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Update("last_message_at", msg.CreatedAt).Error

	h.Hub.Publish(realtime.ConversationRoom(conv.ID), fiber.Map{
		"type":    "newDirectMessage",
		"message": msg,
	})

	recipientID := conv.ParticipantOneID
	if userUUID == conv.ParticipantOneID {
		recipientID = conv.ParticipantTwoID
	}
	h.Hub.SendToUser(recipientID, fiber.Map{
		"type":            "newMessageNotification",
		"conversation_id": conv.ID,
	})

	if h.RDB != nil {
		payload, _ := json.Marshal(fiber.Map{
			"type":            "chat_message",
			"conversation_id": convUUID.String(),
			"sender_id":       userUUID.String(),
			"text":            req.Text,
		})
		if err := h.RDB.Publish(context.Background(), "notifications:"+recipientID.String(), payload).Err(); err != nil {
			logger.Warnf("chat: redis publish: %v", err)
		}
	}

	return ok(c, msg)
}
