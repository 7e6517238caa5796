package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
)

// isDuplicateErr reports whether err came from a unique-index violation.
// Covers postgres (duplicate key) and the sqlite used in tests (UNIQUE
// constraint failed) without requiring TranslateError.
func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, fmt.Errorf("unauthorized")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		return uuid.Parse(t)
	case []byte:
		return uuid.ParseBytes(t)
	default:
		return uuid.Nil, fmt.Errorf("invalid userId type: %T", v)
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// notify persists a notification, pushes it to the recipient's live room
// and mirrors it onto the redis channel for other processes. Delivery
// failures are logged, never surfaced: a missed live event is recovered by
// the next REST fetch.
func notify(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client,
	recipient, sender uuid.UUID, typ models.NotificationType, link, message string) {

	n := models.Notification{
		RecipientID: recipient,
		SenderID:    sender,
		Type:        typ,
		Link:        link,
		Message:     message,
	}
	if err := db.Create(&n).Error; err != nil {
		logger.Errorf("notify: create notification: %v", err)
		return
	}

	hub.SendToUser(recipient, fiber.Map{
		"type":         "newNotification",
		"notification": n,
	})

	if rdb != nil {
		payload, _ := json.Marshal(n)
		if err := rdb.Publish(context.Background(), "notifications:"+recipient.String(), payload).Err(); err != nil {
			logger.Warnf("notify: redis publish: %v", err)
		}
	}
}
